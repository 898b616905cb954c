package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type Config struct {
	Host           string
	Port           int
	User           string
	KeyPath        string
	KnownHostsPath string // empty skips host key verification
	RemoteAddr     string // address to reach from the SSH host, e.g. 127.0.0.1:27017
	DialTimeout    time.Duration
}

// Tunnel forwards connections accepted on a local loopback port to
// RemoteAddr through an SSH connection.
type Tunnel struct {
	client   *ssh.Client
	listener net.Listener
	remote   string
	logger   *zap.SugaredLogger

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Open dials the SSH host and starts forwarding. The caller must Close the
// tunnel when done.
func Open(ctx context.Context, cfg Config, logger *zap.SugaredLogger) (*Tunnel, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.RemoteAddr == "" {
		return nil, errors.New("tunnel remote address is required")
	}

	clientCfg, err := clientConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: clientCfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ssh host %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to listen on loopback: %w", err)
	}

	t := &Tunnel{
		client:   client,
		listener: listener,
		remote:   cfg.RemoteAddr,
		logger:   logger,
	}
	t.wg.Add(1)
	go t.acceptLoop()

	logger.Debugw("SSH tunnel opened", "ssh_host", addr, "local", listener.Addr().String(), "remote", cfg.RemoteAddr)
	return t, nil
}

// LocalAddr is the loopback address clients should connect to.
func (t *Tunnel) LocalAddr() string {
	return t.listener.Addr().String()
}

// Close stops accepting, tears down the SSH connection and waits for
// in-flight forwards to finish.
func (t *Tunnel) Close() error {
	t.closeOnce.Do(func() {
		lerr := t.listener.Close()
		cerr := t.client.Close()
		t.wg.Wait()
		t.closeErr = errors.Join(lerr, cerr)
		t.logger.Debugw("SSH tunnel closed", "remote", t.remote)
	})
	return t.closeErr
}

func (t *Tunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				t.logger.Warnw("Tunnel accept failed", "error", err)
			}
			return
		}
		t.wg.Add(1)
		go t.forward(local)
	}
}

func (t *Tunnel) forward(local net.Conn) {
	defer t.wg.Done()
	defer local.Close()

	remote, err := t.client.Dial("tcp", t.remote)
	if err != nil {
		t.logger.Warnw("Tunnel remote dial failed", "remote", t.remote, "error", err)
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(remote, local)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(local, remote)
		done <- struct{}{}
	}()
	<-done
}

func clientConfig(cfg Config, logger *zap.SugaredLogger) (*ssh.ClientConfig, error) {
	keyPath, err := expandHome(cfg.KeyPath)
	if err != nil {
		return nil, err
	}
	pem, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh key %s: %w", keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ssh key %s: %w", keyPath, err)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsPath != "" {
		path, err := expandHome(cfg.KnownHostsPath)
		if err != nil {
			return nil, err
		}
		hostKeyCallback, err = knownhosts.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts %s: %w", path, err)
		}
	} else {
		logger.Warnw("SSH host key verification disabled", "host", cfg.Host)
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
