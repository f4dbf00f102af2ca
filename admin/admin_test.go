package admin

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eringen/clower"
	"github.com/eringen/clower/content"
	"github.com/eringen/clower/deploy"
)

type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "plain:" + pw, nil }
func (plainHasher) Verify(hash, pw string) bool    { return hash == "plain:"+pw }

type nopSession struct{}

func (nopSession) MkdirAll(string) error    { return nil }
func (nopSession) Put(string, string) error { return nil }
func (nopSession) Close() error             { return nil }

type server struct {
	*httptest.Server
	dir string

	mu     sync.Mutex
	dials  int
	target deploy.Target
}

func (s *server) dialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{dir: t.TempDir()}
	dialer := deploy.DialFunc(func(_ context.Context, target deploy.Target) (deploy.Session, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.dials++
		s.target = target
		return nopSession{}, nil
	})
	app := clower.New(clower.SiteConfig{
		DataDir:     filepath.Join(s.dir, "data"),
		OutputDir:   filepath.Join(s.dir, "public"),
		TokenSecret: "admin-test-secret",
	},
		clower.WithLogger(zap.NewNop()),
		clower.WithPasswordHasher(plainHasher{}),
		clower.WithDialer(dialer),
	)
	require.NoError(t, app.Init(context.Background()))
	s.Server = httptest.NewServer(app.Echo)
	t.Cleanup(func() {
		s.Close()
		_ = app.Close()
	})
	return s
}

var fixedNow = time.UnixMilli(1700000000000)

func loggedInEditor(t *testing.T, s *server) (*Editor, *Client) {
	t.Helper()
	c := NewClient(s.URL)
	e := NewEditor(c)
	e.now = func() time.Time { return fixedNow }
	require.NoError(t, e.Login(context.Background(), "admin", "admin"))
	return e, c
}

func requireStatus(t *testing.T, err error, status int) *APIError {
	t.Helper()
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "want *APIError, got %v", err)
	require.Equal(t, status, apiErr.Status)
	return apiErr
}

func findPage(pages []content.Page, slug string) (content.Page, bool) {
	for _, p := range pages {
		if p.Slug == slug {
			return p, true
		}
	}
	return content.Page{}, false
}

func sectionTypes(p content.Page) []string {
	types := make([]string, len(p.Sections))
	for i, s := range p.Sections {
		types[i] = s.Type
	}
	return types
}

func TestClientLogin(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	c := NewClient(s.URL + "/")

	err := c.Login(ctx, "admin", "wrong")
	apiErr := requireStatus(t, err, http.StatusUnauthorized)
	require.Equal(t, "Invalid credentials", apiErr.Message)
	require.False(t, c.HasToken())

	require.NoError(t, c.Login(ctx, "admin", "admin"))
	require.True(t, c.HasToken())

	pages, err := c.ListPages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, content.IndexSlug, pages[0].Slug)

	require.NoError(t, c.Logout(ctx))
	require.False(t, c.HasToken())
	_, err = c.ListPages(ctx)
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestClientDropsRejectedToken(t *testing.T) {
	s := newServer(t)
	c := NewClient(s.URL, WithToken("not-a-token"), WithHTTPClient(s.Client()))
	require.True(t, c.HasToken())

	_, err := c.GetTheme(context.Background())
	apiErr := requireStatus(t, err, http.StatusUnauthorized)
	require.Equal(t, "Invalid token", apiErr.Message)
	require.False(t, c.HasToken())
}

func TestClientPages(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	c := NewClient(s.URL)
	require.NoError(t, c.Login(ctx, "admin", "admin"))

	created, err := c.CreatePage(ctx, content.Page{Slug: "contact", Title: "Contact"})
	require.NoError(t, err)
	require.Equal(t, "contact", created.Slug)
	require.NotNil(t, created.Sections)
	require.Empty(t, created.Sections)

	_, err = c.UpdatePage(ctx, "contact", content.Page{Slug: "reach-us", Title: "Reach us"})
	require.NoError(t, err)
	_, err = c.GetPage(ctx, "contact")
	requireStatus(t, err, http.StatusNotFound)

	got, err := c.GetPage(ctx, "reach-us")
	require.NoError(t, err)
	require.Equal(t, "Reach us", got.Title)

	n, err := c.Generate(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.FileExists(t, filepath.Join(s.dir, "public", "reach-us.html"))

	require.NoError(t, c.DeletePage(ctx, "reach-us"))
	err = c.DeletePage(ctx, content.IndexSlug)
	apiErr := requireStatus(t, err, http.StatusBadRequest)
	require.Equal(t, "Home page cannot be deleted", apiErr.Message)
}

func TestClientImages(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	c := NewClient(s.URL)
	require.NoError(t, c.Login(ctx, "admin", "admin"))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1600, 400))))
	img, err := c.UploadImage(ctx, "Team.png", &buf)
	require.NoError(t, err)
	require.Equal(t, "team.jpg", img.Filename)
	require.Equal(t, "uploads/team.jpg", img.URL)
	require.Equal(t, 800, img.Width)
	require.Equal(t, 200, img.Height)

	images, err := c.ListImages(ctx)
	require.NoError(t, err)
	require.Len(t, images, 1)

	require.NoError(t, c.DeleteImage(ctx, "team.jpg"))
	err = c.DeleteImage(ctx, "team.jpg")
	requireStatus(t, err, http.StatusNotFound)

	_, err = c.UploadImage(ctx, "notes.txt", bytes.NewReader([]byte("plain text")))
	requireStatus(t, err, http.StatusBadRequest)
}

func TestEditorInit(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	e := NewEditor(NewClient(s.URL))
	e.now = func() time.Time { return fixedNow }

	require.NoError(t, e.Init(ctx))
	require.Equal(t, ViewLogin, e.State().View)

	requireStatus(t, e.Login(ctx, "admin", "nope"), http.StatusUnauthorized)
	require.Equal(t, ViewLogin, e.State().View)

	require.NoError(t, e.Login(ctx, "admin", "admin"))
	st := e.State()
	require.Equal(t, ViewPages, st.View)
	require.Len(t, st.Pages, 1)
	require.NotNil(t, st.Current)
	require.Equal(t, content.IndexSlug, st.Current.Slug)
	require.Equal(t, content.IndexSlug, st.Current.OriginalSlug)
	require.Equal(t, "/public/index.html?t=1700000000000", st.PreviewURL)
	require.Equal(t, content.DefaultTheme(), st.Theme)
	require.Equal(t, "admin", st.Settings.Username)
	require.Equal(t, content.DefaultSSHPort, st.Settings.DeployPort)
}

func TestEditorInitWithStaleToken(t *testing.T) {
	s := newServer(t)
	e := NewEditor(NewClient(s.URL, WithToken("expired")))

	err := e.Init(context.Background())
	requireStatus(t, err, http.StatusUnauthorized)
	require.Equal(t, ViewLogin, e.State().View)
}

func TestEditorSections(t *testing.T) {
	s := newServer(t)
	e, _ := loggedInEditor(t, s)

	e.NewPage()
	st := e.State()
	require.True(t, st.Current.IsNew())
	require.Equal(t, "page-1700000000000", st.Current.Slug)
	require.Equal(t, []string{content.SectionText}, sectionTypes(st.Current.Page))

	require.NoError(t, e.AddSection(content.SectionHero))
	require.NoError(t, e.InsertSection(0, content.SectionMarkdown))
	require.Equal(t, []string{content.SectionMarkdown, content.SectionText, content.SectionHero}, sectionTypes(e.State().Current.Page))

	require.NoError(t, e.MoveSection(2, 0))
	require.Equal(t, []string{content.SectionHero, content.SectionMarkdown, content.SectionText}, sectionTypes(e.State().Current.Page))

	require.NoError(t, e.MoveSection(0, 2))
	require.Equal(t, []string{content.SectionMarkdown, content.SectionText, content.SectionHero}, sectionTypes(e.State().Current.Page))

	require.NoError(t, e.RemoveSection(1))
	require.Equal(t, []string{content.SectionMarkdown, content.SectionHero}, sectionTypes(e.State().Current.Page))

	require.ErrorIs(t, e.AddSection("carousel"), ErrSectionType)
	require.Len(t, e.State().Current.Sections, 2)
	require.ErrorIs(t, e.InsertSection(3, content.SectionText), ErrSectionRange)
	require.ErrorIs(t, e.RemoveSection(-1), ErrSectionRange)
	require.ErrorIs(t, e.MoveSection(0, 2), ErrSectionRange)
}

func TestEditorStateIsACopy(t *testing.T) {
	s := newServer(t)
	e, _ := loggedInEditor(t, s)

	st := e.State()
	st.Current.Title = "changed"
	st.Current.Sections[0].Props["title"] = "changed"
	st.Pages[0].Title = "changed"

	again := e.State()
	require.NotEqual(t, "changed", again.Current.Title)
	require.NotEqual(t, "changed", again.Current.Sections[0].Props["title"])
	require.NotEqual(t, "changed", again.Pages[0].Title)
}

func TestEditorWithoutDraft(t *testing.T) {
	e := NewEditor(NewClient("http://127.0.0.1:0"))
	ctx := context.Background()

	require.ErrorIs(t, e.AddSection(content.SectionText), ErrNoDraft)
	require.ErrorIs(t, e.RemoveSection(0), ErrNoDraft)
	require.ErrorIs(t, e.MoveSection(0, 0), ErrNoDraft)
	require.ErrorIs(t, e.SavePage(ctx), ErrNoDraft)
	require.ErrorIs(t, e.DeletePage(ctx), ErrNoDraft)
	require.ErrorIs(t, e.EditDraft(func(*content.Page) {}), ErrNoDraft)
}

func TestEditorSaveRenameDelete(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	e, c := loggedInEditor(t, s)

	e.NewPage()
	require.NoError(t, e.AddSection(content.SectionHero))
	require.NoError(t, e.EditDraft(func(p *content.Page) {
		p.Slug = "about"
		p.Title = "About"
	}))
	require.NoError(t, e.SavePage(ctx))

	st := e.State()
	require.Len(t, st.Pages, 2)
	require.Equal(t, "about", st.Current.OriginalSlug)
	require.False(t, st.Current.IsNew())
	require.Equal(t, []string{content.SectionText, content.SectionHero}, sectionTypes(st.Current.Page))
	require.Equal(t, "/public/about.html?t=1700000000000", st.PreviewURL)
	require.FileExists(t, filepath.Join(s.dir, "public", "about.html"))

	require.NoError(t, e.EditDraft(func(p *content.Page) { p.Slug = "about-us" }))
	require.NoError(t, e.SavePage(ctx))
	st = e.State()
	require.Equal(t, "about-us", st.Current.OriginalSlug)
	_, found := findPage(st.Pages, "about")
	require.False(t, found)
	_, err := c.GetPage(ctx, "about")
	requireStatus(t, err, http.StatusNotFound)

	require.NoError(t, e.LoadPage(ctx, content.IndexSlug))
	require.ErrorIs(t, e.DeletePage(ctx), ErrIndexPage)

	require.NoError(t, e.LoadPage(ctx, "about-us"))
	require.NoError(t, e.DeletePage(ctx))
	st = e.State()
	require.Len(t, st.Pages, 1)
	require.Equal(t, content.IndexSlug, st.Current.Slug)
	_, err = os.Stat(filepath.Join(s.dir, "data", "pages", "about-us.json"))
	require.True(t, os.IsNotExist(err))
}

func TestEditorDiscardsUnsavedDraft(t *testing.T) {
	s := newServer(t)
	e, _ := loggedInEditor(t, s)

	e.NewPage()
	require.NoError(t, e.DeletePage(context.Background()))
	st := e.State()
	require.Len(t, st.Pages, 1)
	require.Equal(t, content.IndexSlug, st.Current.Slug)
}

func TestEditorSaveTheme(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	e, _ := loggedInEditor(t, s)

	theme := e.State().Theme
	theme.Colors.Primary = "#112233"
	e.SetTheme(theme)
	e.SetView(ViewTheme)
	require.NoError(t, e.SaveTheme(ctx))

	st := e.State()
	require.Equal(t, ViewTheme, st.View)
	require.Equal(t, "#112233", st.Theme.Colors.Primary)

	html, err := os.ReadFile(filepath.Join(s.dir, "public", "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(html), "#112233")
}

func TestEditorSettingsAndDeploy(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	e, _ := loggedInEditor(t, s)

	err := e.Deploy(ctx)
	apiErr := requireStatus(t, err, http.StatusInternalServerError)
	require.Contains(t, apiErr.Message, "missing")
	require.Zero(t, s.dialCount())

	form := e.State().Settings
	form.DeployHost = "example.org"
	form.DeployPort = 2222
	form.DeployUsername = "deployer"
	form.DeployPassword = "s3cret"
	form.RemotePath = "/var/www"
	e.SetSettings(form)
	require.NoError(t, e.SaveSettings(ctx))

	saved := e.State().Settings
	require.True(t, saved.DeployPasswordSet)
	require.Empty(t, saved.DeployPassword)
	require.Equal(t, "example.org", saved.DeployHost)
	require.Equal(t, 2222, saved.DeployPort)

	require.NoError(t, e.Deploy(ctx))
	require.Equal(t, 1, s.dialCount())
	s.mu.Lock()
	require.Equal(t, "s3cret", s.target.Password)
	require.Equal(t, 2222, s.target.Port)
	s.mu.Unlock()

	form = e.State().Settings
	form.ClearDeployPassword = true
	e.SetSettings(form)
	require.NoError(t, e.SaveSettings(ctx))
	require.False(t, e.State().Settings.DeployPasswordSet)
}

func TestEditorChangesAdminPassword(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	e, _ := loggedInEditor(t, s)

	form := e.State().Settings
	form.Password = "better"
	e.SetSettings(form)
	require.NoError(t, e.SaveSettings(ctx))
	require.Empty(t, e.State().Settings.Password)

	c := NewClient(s.URL)
	requireStatus(t, c.Login(ctx, "admin", "admin"), http.StatusUnauthorized)
	require.NoError(t, c.Login(ctx, "admin", "better"))
}
