package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eringen/clower/content"
)

type settingsFunc func(ctx context.Context) (content.Settings, error)

func (f settingsFunc) Get(ctx context.Context) (content.Settings, error) { return f(ctx) }

func staticSettings(dep content.Deployment) SettingsSource {
	return settingsFunc(func(context.Context) (content.Settings, error) {
		return content.Settings{Deployment: dep}, nil
	})
}

type fakeSession struct {
	mu       sync.Mutex
	dirs     []string
	files    map[string]string
	putErr   error
	block    bool
	closed   chan struct{}
	closeN   int
	closeOne sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{files: map[string]string{}, closed: make(chan struct{})}
}

func (s *fakeSession) MkdirAll(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs = append(s.dirs, dir)
	return nil
}

func (s *fakeSession) Put(local, remote string) error {
	if s.block {
		<-s.closed
		return errors.New("connection closed")
	}
	if s.putErr != nil {
		return s.putErr
	}
	raw, err := os.ReadFile(local)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[remote] = string(raw)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closeN++
	s.mu.Unlock()
	s.closeOne.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSession) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type recordingDialer struct {
	sess    *fakeSession
	err     error
	targets []Target
}

func (d *recordingDialer) Dial(_ context.Context, t Target) (Session, error) {
	d.targets = append(d.targets, t)
	if d.err != nil {
		return nil, d.err
	}
	return d.sess, nil
}

var validDeployment = content.Deployment{
	Host:       "example.com",
	Username:   "deployer",
	Password:   "s3cret",
	RemotePath: "/var/www/site/",
}

func writeSite(t *testing.T) string {
	t.Helper()
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "index.html"), []byte("home"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(out, "about.html"), []byte("about"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(out, "uploads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "uploads", "cat.jpg"), []byte("jpeg"), 0o644))
	return out
}

func TestDeployMirrorsOutputDir(t *testing.T) {
	t.Parallel()

	out := writeSite(t)
	dialer := &recordingDialer{sess: newFakeSession()}
	d := New(staticSettings(validDeployment), out, WithDialer(dialer))

	require.NoError(t, d.Deploy(context.Background()))

	require.Len(t, dialer.targets, 1)
	require.Equal(t, Target{Host: "example.com", Port: 22, Username: "deployer", Password: "s3cret"}, dialer.targets[0])
	require.Equal(t, "example.com:22", dialer.targets[0].Addr())

	sess := dialer.sess
	sort.Strings(sess.dirs)
	require.Equal(t, []string{"/var/www/site", "/var/www/site/uploads"}, sess.dirs)
	require.Equal(t, map[string]string{
		"/var/www/site/index.html":      "home",
		"/var/www/site/about.html":      "about",
		"/var/www/site/uploads/cat.jpg": "jpeg",
	}, sess.files)
	require.True(t, sess.isClosed())
	require.Equal(t, 1, sess.closeN)
}

func TestDeployRejectsIncompleteConfigBeforeDialing(t *testing.T) {
	t.Parallel()

	dialer := &recordingDialer{sess: newFakeSession()}
	dep := validDeployment
	dep.Host = ""
	dep.RemotePath = " "
	d := New(staticSettings(dep), t.TempDir(), WithDialer(dialer))

	err := d.Deploy(context.Background())
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, []string{"host", "remotePath"}, cfgErr.Missing)
	require.Empty(t, dialer.targets)
}

func TestDeployUsesConfiguredPort(t *testing.T) {
	t.Parallel()

	dialer := &recordingDialer{sess: newFakeSession()}
	dep := validDeployment
	dep.Port = 2222
	d := New(staticSettings(dep), t.TempDir(), WithDialer(dialer))

	require.NoError(t, d.Deploy(context.Background()))
	require.Equal(t, 2222, dialer.targets[0].Port)
}

func TestDeployWrapsDialErrors(t *testing.T) {
	t.Parallel()

	refused := errors.New("connection refused")
	d := New(staticSettings(validDeployment), t.TempDir(), WithDialer(&recordingDialer{err: refused}))

	err := d.Deploy(context.Background())
	var depErr *DeployError
	require.ErrorAs(t, err, &depErr)
	require.Equal(t, "dial", depErr.Op)
	require.ErrorIs(t, err, refused)
}

func TestDeployClosesSessionOnTransferError(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.putErr = errors.New("permission denied")
	d := New(staticSettings(validDeployment), writeSite(t), WithDialer(&recordingDialer{sess: sess}))

	err := d.Deploy(context.Background())
	var depErr *DeployError
	require.ErrorAs(t, err, &depErr)
	require.True(t, strings.HasPrefix(depErr.Op, "put "), depErr.Op)
	require.ErrorIs(t, err, sess.putErr)
	require.True(t, sess.isClosed())
}

func TestDeployTimeoutClosesStuckSession(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.block = true
	d := New(staticSettings(validDeployment), writeSite(t),
		WithDialer(&recordingDialer{sess: sess}),
		WithTimeout(50*time.Millisecond),
	)

	err := d.Deploy(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, sess.isClosed())
}

func TestDeployCreatesMissingOutputDir(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "public")
	dialer := &recordingDialer{sess: newFakeSession()}
	d := New(staticSettings(validDeployment), out, WithDialer(dialer))

	require.NoError(t, d.Deploy(context.Background()))
	require.DirExists(t, out)
	require.Equal(t, []string{"/var/www/site"}, dialer.sess.dirs)
	require.Empty(t, dialer.sess.files)
}

func TestDeploySurfacesSettingsErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk gone")
	d := New(settingsFunc(func(context.Context) (content.Settings, error) {
		return content.Settings{}, boom
	}), t.TempDir(), WithDialer(&recordingDialer{sess: newFakeSession()}))

	require.ErrorIs(t, d.Deploy(context.Background()), boom)
}

func TestSFTPDialerKnownHosts(t *testing.T) {
	t.Parallel()

	cb, err := (&SFTPDialer{}).hostKeyCallback()
	require.NoError(t, err)
	require.NotNil(t, cb)

	_, err = (&SFTPDialer{KnownHostsFile: filepath.Join(t.TempDir(), "missing")}).hostKeyCallback()
	require.Error(t, err)
}
