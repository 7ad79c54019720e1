package ssh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultPort           = 22
	defaultConnectTimeout = 30 * time.Second
	defaultKnownHosts     = "~/.ssh/known_hosts"
)

type NativeConfig struct {
	Port                  int
	KeyPath               string
	Passphrase            string
	ConnectTimeout        time.Duration
	StrictHostKeyChecking bool
	KnownHostsPath        string
}

type dialFunc func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)

// NativeTransport speaks SSH in-process and keeps one connection per login.
type NativeTransport struct {
	config NativeConfig
	dial   dialFunc

	mu    sync.Mutex
	conns map[string]*ssh.Client
}

func NewNativeTransport(config NativeConfig) *NativeTransport {
	if config.Port == 0 {
		config.Port = defaultPort
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = defaultConnectTimeout
	}
	if config.KnownHostsPath == "" {
		config.KnownHostsPath = defaultKnownHosts
	}
	return &NativeTransport{
		config: config,
		dial:   ssh.Dial,
		conns:  make(map[string]*ssh.Client),
	}
}

func (t *NativeTransport) Run(ctx context.Context, target Target, script string, stdout, stderr io.Writer) error {
	client, err := t.connect(target)
	if err != nil {
		return err
	}

	session, err := client.NewSession()
	if err != nil {
		t.drop(target)
		return fmt.Errorf("create SSH session on %s: %w", target.Host, err)
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(script)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return ctx.Err()
	case err = <-done:
	}

	if err == nil {
		return nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitStatus()}
	}
	// 连接中断或会话异常，丢弃缓存的连接以便重试时重新建立
	t.drop(target)
	return fmt.Errorf("run command on %s: %w", target.Host, err)
}

func (t *NativeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for key, conn := range t.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(t.conns, key)
	}
	return errors.Join(errs...)
}

func (t *NativeTransport) connect(target Target) (*ssh.Client, error) {
	key := t.key(target)

	t.mu.Lock()
	defer t.mu.Unlock()

	if conn, ok := t.conns[key]; ok {
		return conn, nil
	}

	config, err := t.clientConfig(target.Credentials)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(target.Host, strconv.Itoa(t.config.Port))
	conn, err := t.dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("SSH connection to %s failed: %w", addr, err)
	}
	t.conns[key] = conn
	return conn, nil
}

func (t *NativeTransport) drop(target Target) {
	key := t.key(target)

	t.mu.Lock()
	defer t.mu.Unlock()

	if conn, ok := t.conns[key]; ok {
		_ = conn.Close()
		delete(t.conns, key)
	}
}

// key identifies a cached connection by login and credentials, so a connection is only
// reused by callers presenting the same password. The password itself is only kept hashed.
func (t *NativeTransport) key(target Target) string {
	auth := "key"
	if target.Credentials.UsePassword() {
		sum := sha256.Sum256([]byte(target.Credentials.Password))
		auth = "password:" + hex.EncodeToString(sum[:])
	}
	return target.Login() + ":" + strconv.Itoa(t.config.Port) + "#" + auth
}

func (t *NativeTransport) clientConfig(creds Credentials) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if creds.UsePassword() {
		password := creds.Password
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
	} else {
		signer, err := t.loadSigner()
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}

	hostKeyCallback, err := t.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            creds.User,
		Auth:            auth,
		Timeout:         t.config.ConnectTimeout,
		HostKeyCallback: hostKeyCallback,
	}, nil
}

func (t *NativeTransport) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if !t.config.StrictHostKeyChecking {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // 与ssh -o StrictHostKeyChecking=no 行为一致
	}
	callback, err := knownhosts.New(expandHome(t.config.KnownHostsPath))
	if err != nil {
		return nil, &PreconditionError{Tool: "known_hosts", Err: err}
	}
	return callback, nil
}

func (t *NativeTransport) loadSigner() (ssh.Signer, error) {
	if t.config.KeyPath == "" {
		return nil, &PreconditionError{Tool: "private key", Err: errors.New("no password given and no private key configured")}
	}
	keyBytes, err := os.ReadFile(expandHome(t.config.KeyPath))
	if err != nil {
		return nil, &PreconditionError{Tool: "private key", Err: err}
	}
	signer, err := parsePrivateKey(keyBytes, t.config.Passphrase)
	if err != nil {
		return nil, &PreconditionError{Tool: "private key", Err: fmt.Errorf("parse private key: %w", err)}
	}
	return signer, nil
}

func parsePrivateKey(privateKey []byte, passphrase string) (ssh.Signer, error) {
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(privateKey, []byte(passphrase))
	}
	return ssh.ParsePrivateKey(privateKey)
}
