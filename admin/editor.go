package admin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/eringen/clower/content"
	"github.com/eringen/clower/generator"
)

// View is the screen an admin interface shows.
type View string

const (
	ViewLogin    View = "login"
	ViewPages    View = "pages"
	ViewTheme    View = "theme"
	ViewSettings View = "settings"
)

var (
	ErrNoDraft      = errors.New("admin: no page is being edited")
	ErrIndexPage    = errors.New("admin: the home page cannot be deleted")
	ErrSectionRange = errors.New("admin: section index out of range")
	ErrSectionType  = errors.New("admin: unknown section type")
)

// Draft is the page being edited. OriginalSlug is the slug the page is
// stored under, empty for a page that was never saved.
type Draft struct {
	content.Page
	OriginalSlug string
}

// IsNew reports whether saving the draft creates a page.
func (d Draft) IsNew() bool { return d.OriginalSlug == "" }

// SettingsForm is the editable copy of the settings. Passwords start empty
// and are only sent when filled in.
type SettingsForm struct {
	Username            string
	Password            string
	DeployHost          string
	DeployPort          int
	DeployUsername      string
	DeployPassword      string
	DeployPasswordSet   bool
	// ClearDeployPassword removes the stored deployment password on save.
	ClearDeployPassword bool
	RemotePath          string
	AutoDeploy          bool
}

func formFromSettings(s content.PublicSettings) SettingsForm {
	port := s.Deployment.Port
	if port == 0 {
		port = content.DefaultSSHPort
	}
	return SettingsForm{
		Username:          s.Admin.Username,
		DeployHost:        s.Deployment.Host,
		DeployPort:        port,
		DeployUsername:    s.Deployment.Username,
		DeployPasswordSet: s.Deployment.PasswordSet,
		RemotePath:        s.Deployment.RemotePath,
		AutoDeploy:        s.AutoDeploy,
	}
}

// Update turns the form into a settings write.
func (f SettingsForm) Update() content.SettingsUpdate {
	dep := &content.DeploymentUpdate{
		Host:       &f.DeployHost,
		Port:       &f.DeployPort,
		Username:   &f.DeployUsername,
		RemotePath: &f.RemotePath,
	}
	if f.DeployPassword != "" {
		dep.Password = &f.DeployPassword
	} else if f.ClearDeployPassword {
		dep.ClearPassword = true
	}
	return content.SettingsUpdate{
		Admin:      &content.AdminUpdate{Username: f.Username, Password: f.Password},
		Deployment: dep,
		AutoDeploy: &f.AutoDeploy,
	}
}

// State is everything an admin interface renders.
type State struct {
	View       View
	Pages      []content.Page
	Current    *Draft
	Theme      content.Theme
	Settings   SettingsForm
	PreviewURL string
}

// Editor holds the admin state and applies actions to it through a
// Client. It is not safe for concurrent use.
type Editor struct {
	client *Client
	state  State
	now    func() time.Time
}

// NewEditor returns an Editor on the login view.
func NewEditor(c *Client) *Editor {
	return &Editor{
		client: c,
		state: State{
			View:       ViewLogin,
			Theme:      content.DefaultTheme(),
			Settings:   SettingsForm{Username: "admin", DeployPort: content.DefaultSSHPort},
			PreviewURL: "/public/index.html",
		},
		now: time.Now,
	}
}

// State returns a copy of the current state.
func (e *Editor) State() State {
	s := e.state
	s.Pages = append([]content.Page(nil), e.state.Pages...)
	if e.state.Current != nil {
		d := Draft{Page: e.state.Current.Page.Clone(), OriginalSlug: e.state.Current.OriginalSlug}
		s.Current = &d
	}
	return s
}

// SetView switches screens without touching the data.
func (e *Editor) SetView(v View) {
	e.state.View = v
}

// Init loads everything when the client already holds a token and shows
// the login view otherwise.
func (e *Editor) Init(ctx context.Context) error {
	if !e.client.HasToken() {
		e.state.View = ViewLogin
		return nil
	}
	if err := e.Refresh(ctx); err != nil {
		e.state.View = ViewLogin
		return err
	}
	e.state.View = ViewPages
	return nil
}

// Login authenticates and loads the data.
func (e *Editor) Login(ctx context.Context, username, password string) error {
	if err := e.client.Login(ctx, username, password); err != nil {
		return err
	}
	return e.Init(ctx)
}

// Refresh reloads pages, theme and settings. The page being edited is
// replaced by its stored version when one exists; with nothing being
// edited the first page is opened.
func (e *Editor) Refresh(ctx context.Context) error {
	pages, err := e.client.ListPages(ctx)
	if err != nil {
		return err
	}
	theme, err := e.client.GetTheme(ctx)
	if err != nil {
		return err
	}
	settings, err := e.client.GetSettings(ctx)
	if err != nil {
		return err
	}
	e.state.Pages = pages
	e.state.Theme = theme
	e.state.Settings = formFromSettings(settings)

	if cur := e.state.Current; cur != nil {
		for _, p := range pages {
			if p.Slug == cur.Slug {
				e.open(p)
				break
			}
		}
	}
	if e.state.Current == nil && len(pages) > 0 {
		e.open(pages[0])
	}
	return nil
}

func (e *Editor) open(p content.Page) {
	e.state.Current = &Draft{Page: p.Clone(), OriginalSlug: p.Slug}
	e.state.PreviewURL = e.previewURL(p.Slug)
}

func (e *Editor) previewURL(slug string) string {
	return fmt.Sprintf("/public/%s?t=%d", generator.OutputFile(slug), e.now().UnixMilli())
}

// LoadPage fetches slug and makes it the draft.
func (e *Editor) LoadPage(ctx context.Context, slug string) error {
	p, err := e.client.GetPage(ctx, slug)
	if err != nil {
		return err
	}
	e.open(p)
	return nil
}

// NewPage starts an unsaved draft with a single text section.
func (e *Editor) NewPage() {
	e.state.Current = &Draft{Page: content.Page{
		Slug:  fmt.Sprintf("page-%d", e.now().UnixMilli()),
		Title: "New page",
		Sections: []content.Section{
			{Type: content.SectionText, Props: map[string]any{"content": "<p>Your page content.</p>"}},
		},
	}}
}

// EditDraft applies fn to the draft, e.g. to change its title or slug.
func (e *Editor) EditDraft(fn func(p *content.Page)) error {
	if e.state.Current == nil {
		return ErrNoDraft
	}
	fn(&e.state.Current.Page)
	return nil
}

// AddSection appends a section of typ with its default props.
func (e *Editor) AddSection(typ string) error {
	if e.state.Current == nil {
		return ErrNoDraft
	}
	return e.InsertSection(len(e.state.Current.Sections), typ)
}

// InsertSection puts a new section of typ at index. typ must be one of
// content.SectionTypes.
func (e *Editor) InsertSection(index int, typ string) error {
	cur := e.state.Current
	if cur == nil {
		return ErrNoDraft
	}
	if !slices.Contains(content.SectionTypes, typ) {
		return fmt.Errorf("%w: %q", ErrSectionType, typ)
	}
	if index < 0 || index > len(cur.Sections) {
		return ErrSectionRange
	}
	cur.Sections = append(cur.Sections, content.Section{})
	copy(cur.Sections[index+1:], cur.Sections[index:])
	cur.Sections[index] = content.NewSection(typ)
	return nil
}

// RemoveSection deletes the section at index.
func (e *Editor) RemoveSection(index int) error {
	cur := e.state.Current
	if cur == nil {
		return ErrNoDraft
	}
	if index < 0 || index >= len(cur.Sections) {
		return ErrSectionRange
	}
	cur.Sections = append(cur.Sections[:index], cur.Sections[index+1:]...)
	return nil
}

// MoveSection moves the section at from so that it ends up at to.
func (e *Editor) MoveSection(from, to int) error {
	cur := e.state.Current
	if cur == nil {
		return ErrNoDraft
	}
	n := len(cur.Sections)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrSectionRange
	}
	s := cur.Sections[from]
	cur.Sections = append(cur.Sections[:from], cur.Sections[from+1:]...)
	cur.Sections = append(cur.Sections[:to], append([]content.Section{s}, cur.Sections[to:]...)...)
	return nil
}

// SavePage creates the draft when it is new and otherwise updates the page
// stored under its original slug, then reloads.
func (e *Editor) SavePage(ctx context.Context) error {
	cur := e.state.Current
	if cur == nil {
		return ErrNoDraft
	}
	var err error
	if cur.IsNew() {
		_, err = e.client.CreatePage(ctx, cur.Page)
	} else {
		_, err = e.client.UpdatePage(ctx, cur.OriginalSlug, cur.Page)
	}
	if err != nil {
		return err
	}
	return e.Refresh(ctx)
}

// DeletePage removes the draft's page. An unsaved draft is only dropped.
func (e *Editor) DeletePage(ctx context.Context) error {
	cur := e.state.Current
	if cur == nil {
		return ErrNoDraft
	}
	if cur.Slug == content.IndexSlug || cur.OriginalSlug == content.IndexSlug {
		return ErrIndexPage
	}
	if !cur.IsNew() {
		if err := e.client.DeletePage(ctx, cur.OriginalSlug); err != nil {
			return err
		}
	}
	e.state.Current = nil
	return e.Refresh(ctx)
}

// SetTheme replaces the theme being edited.
func (e *Editor) SetTheme(t content.Theme) {
	e.state.Theme = t
}

// SaveTheme stores the edited theme and reloads.
func (e *Editor) SaveTheme(ctx context.Context) error {
	if _, err := e.client.PutTheme(ctx, e.state.Theme); err != nil {
		return err
	}
	return e.Refresh(ctx)
}

// SetSettings replaces the settings form.
func (e *Editor) SetSettings(f SettingsForm) {
	e.state.Settings = f
}

// SaveSettings stores the form. Password fields are cleared afterwards.
func (e *Editor) SaveSettings(ctx context.Context) error {
	s, err := e.client.PutSettings(ctx, e.state.Settings.Update())
	if err != nil {
		return err
	}
	e.state.Settings = formFromSettings(s)
	return nil
}

// Build regenerates the site and returns the number of pages written.
func (e *Editor) Build(ctx context.Context) (int, error) {
	n, err := e.client.Generate(ctx)
	if err != nil {
		return 0, err
	}
	if e.state.Current != nil {
		e.state.PreviewURL = e.previewURL(e.state.Current.Slug)
	}
	return n, nil
}

// Deploy saves the settings, regenerates and deploys.
func (e *Editor) Deploy(ctx context.Context) error {
	if err := e.SaveSettings(ctx); err != nil {
		return err
	}
	if _, err := e.Build(ctx); err != nil {
		return err
	}
	return e.client.Deploy(ctx)
}
