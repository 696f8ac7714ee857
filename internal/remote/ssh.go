package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/daydemir/vhostdoctor/internal/types"
)

// SSHConfig holds connection settings for the remote host
type SSHConfig struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	KeyFile               string
	KnownHostsFile        string
	InsecureIgnoreHostKey bool
	Timeout               time.Duration
	CommandTimeout        time.Duration
}

// Addr returns host:port
func (c SSHConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// SSHDialer opens SSH sessions with an SFTP channel for file operations
type SSHDialer struct {
	cfg    SSHConfig
	logger zerolog.Logger
}

// NewSSHDialer creates a dialer for cfg
func NewSSHDialer(cfg SSHConfig, logger zerolog.Logger) *SSHDialer {
	return &SSHDialer{cfg: cfg, logger: logger.With().Str("component", "ssh").Logger()}
}

// Dial connects, authenticates, and opens the SFTP subsystem
func (d *SSHDialer) Dial(ctx context.Context) (Session, error) {
	clientCfg, err := d.clientConfig()
	if err != nil {
		return nil, &types.TransportError{Op: "configure ssh", Err: err}
	}

	addr := d.cfg.Addr()
	d.logger.Debug().Str("addr", addr).Str("user", d.cfg.User).Msg("dialing")

	dialer := net.Dialer{Timeout: d.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &types.TransportError{Op: "dial " + addr, Err: err}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		return nil, &types.TransportError{Op: "handshake " + addr, Err: err}
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, &types.TransportError{Op: "open sftp", Err: err}
	}

	d.logger.Info().Str("addr", addr).Msg("connected")
	return &SSH{
		client:         client,
		sftp:           sftpClient,
		commandTimeout: d.cfg.CommandTimeout,
		logger:         d.logger,
	}, nil
}

func (d *SSHDialer) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if d.cfg.KeyFile != "" {
		pem, err := os.ReadFile(d.cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse key file %s: %w", d.cfg.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if d.cfg.Password != "" {
		password := d.cfg.Password
		auth = append(auth,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}
	if len(auth) == 0 {
		return nil, errors.New("no authentication method: set ssh.password or ssh.key_file")
	}

	var hostKey ssh.HostKeyCallback
	switch {
	case d.cfg.InsecureIgnoreHostKey:
		d.logger.Warn().Msg("host key verification disabled")
		hostKey = ssh.InsecureIgnoreHostKey()
	case d.cfg.KnownHostsFile != "":
		cb, err := knownhosts.New(d.cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
		hostKey = cb
	default:
		return nil, errors.New("no host key policy: set ssh.known_hosts_file or ssh.insecure_ignore_host_key")
	}

	return &ssh.ClientConfig{
		User:            d.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         d.cfg.Timeout,
	}, nil
}

// SSH is a live session: commands over SSH exec channels, files over SFTP
type SSH struct {
	client         *ssh.Client
	sftp           *sftp.Client
	commandTimeout time.Duration
	logger         zerolog.Logger
}

// Execute runs command in a fresh SSH session
func (s *SSH) Execute(ctx context.Context, command string) (Result, error) {
	if s.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.commandTimeout)
		defer cancel()
	}

	session, err := s.client.NewSession()
	if err != nil {
		return Result{}, &types.TransportError{Op: "new session", Err: err}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		session.Close()
		return Result{}, &types.TransportError{Op: "run " + command, Err: ctx.Err()}
	}

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr != nil {
		var exitErr *ssh.ExitError
		if !errors.As(runErr, &exitErr) {
			return res, &types.TransportError{Op: "run " + command, Err: runErr}
		}
		res.ExitCode = exitErr.ExitStatus()
	}

	s.logger.Debug().
		Str("cmd", command).
		Int("exit", res.ExitCode).
		Dur("took", res.Duration).
		Msg("remote command")
	return res, nil
}

// FileExists stats path over SFTP
func (s *SSH) FileExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := s.sftp.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, classify("stat", path, err)
}

// ReadFile reads the whole file over SFTP
func (s *SSH) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.sftp.Open(path)
	if err != nil {
		return nil, classify("open", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, classify("read", path, err)
	}
	return data, nil
}

// WriteFile replaces path with data, keeping the previous file mode if there was one
func (s *SSH) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var mode fs.FileMode
	if info, err := s.sftp.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	f, err := s.sftp.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return classify("create", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return classify("write", path, err)
	}
	if err := f.Close(); err != nil {
		return classify("close", path, err)
	}
	if mode != 0 {
		if err := s.sftp.Chmod(path, mode); err != nil {
			return classify("chmod", path, err)
		}
	}
	s.logger.Debug().Str("path", path).Int("bytes", len(data)).Msg("wrote remote file")
	return nil
}

// Rename moves from to to
func (s *SSH) Rename(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.sftp.Rename(from, to); err != nil {
		return classify("rename", from, err)
	}
	return nil
}

// Remove deletes path
func (s *SSH) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.sftp.Remove(path); err != nil {
		return classify("remove", path, err)
	}
	return nil
}

// ListDir returns the sorted names of regular files in dir
func (s *SSH) ListDir(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := s.sftp.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, classify("readdir", dir, err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Close shuts down SFTP and the SSH connection
func (s *SSH) Close() error {
	sftpErr := s.sftp.Close()
	clientErr := s.client.Close()
	if clientErr != nil {
		return clientErr
	}
	return sftpErr
}

// classify turns a lost connection into a TransportError and leaves
// ordinary filesystem errors (missing file, permission) wrapped as they are
func classify(op, path string, err error) error {
	if errors.Is(err, sftp.ErrSSHFxConnectionLost) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return &types.TransportError{Op: op + " " + path, Err: err}
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}
