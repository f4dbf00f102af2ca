// Package deploy mirrors the generated site to a remote host.
package deploy

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eringen/clower/content"
)

// DefaultTimeout bounds a whole deployment run.
const DefaultTimeout = 5 * time.Minute

// SettingsSource supplies the deployment parameters, password included.
type SettingsSource interface {
	Get(ctx context.Context) (content.Settings, error)
}

// Target is the remote host a Dialer connects to.
type Target struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Addr returns host:port.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Session is an open connection to the remote file system. Paths are
// slash-separated.
type Session interface {
	// MkdirAll creates dir and its parents; an existing directory is not
	// an error.
	MkdirAll(dir string) error
	// Put copies the local file to remote, replacing it if present.
	Put(local, remote string) error
	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context, t Target) (Session, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context, t Target) (Session, error)

func (f DialFunc) Dial(ctx context.Context, t Target) (Session, error) {
	return f(ctx, t)
}

// ConfigError reports deployment settings that are required but empty.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "deployment configuration is incomplete: missing " + strings.Join(e.Missing, ", ")
}

// DeployError wraps a connection or transfer failure.
type DeployError struct {
	Op  string
	Err error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("deploy: %s: %v", e.Op, e.Err)
}

func (e *DeployError) Unwrap() error { return e.Err }

// Deployer uploads the output directory to the configured host.
type Deployer struct {
	settings SettingsSource
	outDir   string
	dialer   Dialer
	timeout  time.Duration
	logger   *zap.Logger
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithDialer replaces the SFTP dialer.
func WithDialer(d Dialer) Option {
	return func(dp *Deployer) { dp.dialer = d }
}

// WithTimeout bounds each run; zero or negative keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(dp *Deployer) {
		if d > 0 {
			dp.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(dp *Deployer) {
		if l != nil {
			dp.logger = l
		}
	}
}

// New returns a Deployer for outDir. Without WithDialer it connects over
// SFTP and accepts any host key.
func New(settings SettingsSource, outDir string, opts ...Option) *Deployer {
	d := &Deployer{
		settings: settings,
		outDir:   outDir,
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.dialer == nil {
		d.dialer = &SFTPDialer{Logger: d.logger}
	}
	return d
}

// Validate checks that the settings name a host, a user and a remote path.
func Validate(dep content.Deployment) error {
	var missing []string
	if strings.TrimSpace(dep.Host) == "" {
		missing = append(missing, "host")
	}
	if strings.TrimSpace(dep.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(dep.RemotePath) == "" {
		missing = append(missing, "remotePath")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// Deploy copies every file under the output directory to the remote path.
// Files are always uploaded; nothing is deleted remotely.
func (d *Deployer) Deploy(ctx context.Context) error {
	st, err := d.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("deploy: load settings: %w", err)
	}
	dep := st.Deployment
	if err := Validate(dep); err != nil {
		return err
	}
	port := dep.Port
	if port == 0 {
		port = content.DefaultSSHPort
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := os.MkdirAll(d.outDir, 0o755); err != nil {
		return &DeployError{Op: "prepare", Err: err}
	}

	target := Target{Host: dep.Host, Port: port, Username: dep.Username, Password: dep.Password}
	start := time.Now()
	sess, err := d.dialer.Dial(ctx, target)
	if err != nil {
		return &DeployError{Op: "dial", Err: err}
	}

	var (
		closeOnce sync.Once
		closeErr  error
	)
	closeSession := func() {
		closeOnce.Do(func() { closeErr = sess.Close() })
	}
	// Closing the session unblocks a transfer stuck on the network.
	stop := context.AfterFunc(ctx, closeSession)
	defer stop()
	defer closeSession()

	n, err := d.mirror(ctx, sess, path.Clean(dep.RemotePath))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &DeployError{Op: "upload", Err: ctxErr}
	}
	if err != nil {
		return err
	}
	closeSession()
	if closeErr != nil {
		d.logger.Warn("deploy: close session", zap.Error(closeErr))
	}

	d.logger.Info("deployment complete",
		zap.String("host", target.Addr()),
		zap.String("remotePath", dep.RemotePath),
		zap.Int("files", n),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// mirror walks the output directory and recreates it under remoteRoot.
func (d *Deployer) mirror(ctx context.Context, sess Session, remoteRoot string) (int, error) {
	if err := sess.MkdirAll(remoteRoot); err != nil {
		return 0, &DeployError{Op: "mkdir " + remoteRoot, Err: err}
	}
	files := 0
	err := filepath.WalkDir(d.outDir, func(local string, entry fs.DirEntry, err error) error {
		if err != nil {
			return &DeployError{Op: "read " + local, Err: err}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(d.outDir, local)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		remote := path.Join(remoteRoot, filepath.ToSlash(rel))
		switch {
		case entry.IsDir():
			if err := sess.MkdirAll(remote); err != nil {
				return &DeployError{Op: "mkdir " + remote, Err: err}
			}
		case entry.Type().IsRegular():
			if err := sess.Put(local, remote); err != nil {
				return &DeployError{Op: "put " + remote, Err: err}
			}
			files++
			d.logger.Debug("uploaded", zap.String("file", remote))
		}
		return nil
	})
	return files, err
}
