package view

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolprogress/schoolprogress/internal/roles"
	"github.com/schoolprogress/schoolprogress/internal/session"
	"github.com/schoolprogress/schoolprogress/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderShellPage(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.Render(rec, "pages/section.html", TemplateData{
		Title:     "Homework",
		CSRFToken: "tok",
		Flash:     &shared.FlashMessage{Kind: "success", Message: "Saved"},
		Principal: &session.Principal{ID: "u1", DisplayName: "Asha Rao", Role: roles.StudentParent},
		Shell: &Shell{
			Panel: "Parent Portal",
			Home:  "/student",
			Nav: []NavLink{
				{Title: "Dashboard", Path: "/student"},
				{Title: "Homework", Path: "/student/homework", Active: true},
			},
		},
	})
	require.NoError(t, err)

	body := rec.Body.String()
	assert.Contains(t, body, "Parent Portal")
	assert.Contains(t, body, "Asha Rao")
	assert.Contains(t, body, `href="/student/homework"`)
	assert.Contains(t, body, `aria-current="page"`)
	assert.Contains(t, body, "Saved")
	assert.Contains(t, body, `name="csrf_token" value="tok"`)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestRenderNilEngine(t *testing.T) {
	var engine *Engine
	assert.Error(t, engine.Render(httptest.NewRecorder(), "pages/login.html", TemplateData{}))
}

func TestInitials(t *testing.T) {
	cases := map[string]string{
		"Amina Njeri":       "AN",
		"Émile Ødegaard":    "ÉØ",
		"rafael  de ortiz":  "RD",
		"Sarah":             "S",
		"":                  "",
		"ümit çelik yılmaz": "ÜÇ",
	}
	for name, want := range cases {
		assert.Equal(t, want, initials(name), name)
	}
}
