package roles

import "strings"

// Well-known public paths.
const (
	LandingPath = "/"
	LoginPath   = "/login"
	LogoutPath  = "/logout"
	InstallPath = "/install"
	StaticPath  = "/static/"
)

// PublicPaths lists exact paths reachable without a session.
var PublicPaths = []string{
	LandingPath,
	LoginPath,
	LogoutPath,
	InstallPath,
	"/healthz",
	"/metrics",
	"/api/session",
}

// Registry maps each role to its allowed subtree and landing page.
type Registry struct {
	configs map[ID]Config
	public  map[string]struct{}
}

// Default returns the registry compiled into the application.
func Default() *Registry {
	return newRegistry(builtin())
}

func newRegistry(configs []Config) *Registry {
	reg := &Registry{
		configs: make(map[ID]Config, len(configs)),
		public:  make(map[string]struct{}, len(PublicPaths)),
	}
	for _, cfg := range configs {
		reg.configs[cfg.Role] = cfg
	}
	for _, p := range PublicPaths {
		reg.public[p] = struct{}{}
	}
	return reg
}

// Config returns the shell configuration of a role.
func (r *Registry) Config(role ID) (Config, bool) {
	cfg, ok := r.configs[role]
	return cfg, ok
}

// Configs returns all role configurations ordered like All.
func (r *Registry) Configs() []Config {
	out := make([]Config, 0, len(r.configs))
	for _, id := range All() {
		if cfg, ok := r.configs[id]; ok {
			out = append(out, cfg)
		}
	}
	return out
}

// LandingPathFor returns the default page of a role.
func (r *Registry) LandingPathFor(role ID) string {
	if cfg, ok := r.configs[role]; ok {
		return cfg.LandingPath
	}
	return LandingPath
}

// IsPublic reports whether path requires no session.
func (r *Registry) IsPublic(path string) bool {
	if _, ok := r.public[path]; ok {
		return true
	}
	return strings.HasPrefix(path, StaticPath)
}

// IsAuthorized reports whether role may visit path.
func (r *Registry) IsAuthorized(role ID, path string) bool {
	if r.IsPublic(path) {
		return true
	}
	cfg, ok := r.configs[role]
	if !ok {
		return false
	}
	return UnderPrefix(cfg.Prefix, path)
}

// UnderPrefix reports whether path equals prefix or lies below it.
func UnderPrefix(prefix, path string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/")
}

func builtin() []Config {
	return []Config{
		{
			Role:        SuperAdmin,
			Title:       "Super Admin",
			Panel:       "Super Admin Panel",
			Prefix:      "/admin",
			LandingPath: "/admin",
			NavItems: []NavItem{
				{Title: "Dashboard", Path: "/admin"},
				{Title: "Students", Path: "/admin/students"},
				{Title: "Classes", Path: "/admin/classes"},
				{Title: "Subjects", Path: "/admin/subjects"},
				{Title: "Teachers", Path: "/admin/teachers"},
				{Title: "Teacher Mapping", Path: "/admin/mapping"},
				{Title: "Attendance", Path: "/admin/attendance"},
				{Title: "Marks", Path: "/admin/marks"},
				{Title: "Behaviour", Path: "/admin/behaviour"},
				{Title: "Study Materials", Path: "/admin/materials"},
				{Title: "Homework", Path: "/admin/homework"},
				{Title: "Announcements", Path: "/admin/announcements"},
				{Title: "Fees", Path: "/admin/fees"},
			},
		},
		{
			Role:        ClassTeacher,
			Title:       "Class Teacher",
			Panel:       "Class Teacher Panel",
			Prefix:      "/class-teacher",
			LandingPath: "/class-teacher",
			NavItems: []NavItem{
				{Title: "Dashboard", Path: "/class-teacher"},
				{Title: "Mark Attendance", Path: "/class-teacher/mark-attendance"},
				{Title: "Students", Path: "/class-teacher/students"},
				{Title: "Leave Requests", Path: "/class-teacher/leave-requests"},
				{Title: "Fees", Path: "/class-teacher/fees"},
				{Title: "Announcements", Path: "/class-teacher/announcements"},
			},
		},
		{
			Role:        SubjectTeacher,
			Title:       "Subject Teacher",
			Panel:       "Subject Teacher Panel",
			Prefix:      "/subject-teacher",
			LandingPath: "/subject-teacher",
			NavItems: []NavItem{
				{Title: "Dashboard", Path: "/subject-teacher"},
				{Title: "Upload Study Material", Path: "/subject-teacher/materials"},
				{Title: "Assign Homework", Path: "/subject-teacher/homework"},
				{Title: "Create Test", Path: "/subject-teacher/tests"},
				{Title: "Enter Marks", Path: "/subject-teacher/marks"},
				{Title: "Behaviour Notes", Path: "/subject-teacher/behaviour"},
				{Title: "Daily Topics", Path: "/subject-teacher/daily-topics"},
				{Title: "Student Performance", Path: "/subject-teacher/performance"},
			},
		},
		{
			Role:        StudentParent,
			Title:       "Student/Parent",
			Panel:       "Parent Portal",
			Prefix:      "/student",
			LandingPath: "/student",
			NavItems: []NavItem{
				{Title: "Dashboard", Path: "/student"},
				{Title: "Attendance", Path: "/student/attendance"},
				{Title: "Homework", Path: "/student/homework"},
				{Title: "Study Materials", Path: "/student/materials"},
				{Title: "Tests & Marks", Path: "/student/tests"},
				{Title: "Behaviour Notes", Path: "/student/behaviour"},
				{Title: "Daily Topics", Path: "/student/daily-topics"},
				{Title: "Announcements", Path: "/student/announcements"},
				{Title: "Leave Request", Path: "/student/leave-request"},
				{Title: "Fees", Path: "/student/fees"},
			},
		},
	}
}
