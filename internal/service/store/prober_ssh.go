package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/arrayops/librarian/internal/database"
	"github.com/arrayops/librarian/internal/logger"
)

// fileInfoCommand is the helper installed on every ssh store host. It
// inspects a data product (flat file or directory tree) and prints its
// FileInfo as JSON on stdout.
const fileInfoCommand = "librarian-file-info"

// SSHProber probes an ssh store by running the store-side helper over a
// remote session.
type SSHProber struct {
	store  *database.Store
	config *ssh.ClientConfig
	addr   string
}

// NewSSHProber builds the client configuration for the store host. The
// store's key file is read once here so a misconfigured store fails at
// construction rather than on first probe.
func NewSSHProber(store *database.Store) (*SSHProber, error) {
	if store.SSHHost == "" {
		return nil, fmt.Errorf("store %s has no ssh host", store.Name)
	}

	user := store.SSHUser
	if user == "" {
		user = "librarian"
	}

	var auth []ssh.AuthMethod
	if store.SSHKeyFile != "" {
		key, err := os.ReadFile(store.SSHKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read ssh key for store %s: %w", store.Name, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ssh key for store %s: %w", store.Name, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}

	addr := store.SSHHost
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	return &SSHProber{
		store: store,
		addr:  addr,
		config: &ssh.ClientConfig{
			User: user,
			Auth: auth,
			// Store hosts are provisioned alongside the librarian;
			// host keys are not pinned in the store registry.
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		},
	}, nil
}

// GetInfoForPath runs the metadata helper against the absolute path of
// the file on the store and decodes its JSON report.
func (p *SSHProber) GetInfoForPath(storePath string) (*FileInfo, error) {
	fullPath := path.Join(p.store.PathPrefix, storePath)
	logger.Debugf("[ssh:%s] probing %s", p.store.Name, fullPath)

	out, err := p.run(fmt.Sprintf("%s %s", fileInfoCommand, shellQuote(fullPath)))
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s on store %s: %w", storePath, p.store.Name, err)
	}

	var info FileInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("malformed file info from store %s for %s: %w", p.store.Name, storePath, err)
	}
	return &info, nil
}

// ListPaths lists regular files under the prefix, returned relative to
// the store's path prefix.
func (p *SSHProber) ListPaths(prefix string, max int) ([]string, error) {
	root := path.Join(p.store.PathPrefix, prefix)
	out, err := p.run(fmt.Sprintf("find %s -type f | head -n %d", shellQuote(root), max))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s on store %s: %w", prefix, p.store.Name, err)
	}

	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		paths = append(paths, strings.TrimPrefix(strings.TrimPrefix(line, p.store.PathPrefix), "/"))
	}
	return paths, nil
}

// TestConnection opens a session and runs a no-op command.
func (p *SSHProber) TestConnection() error {
	if _, err := p.run("true"); err != nil {
		return fmt.Errorf("failed to reach store %s: %w", p.store.Name, err)
	}
	return nil
}

// run executes one command on the store host and returns its stdout.
func (p *SSHProber) run(command string) ([]byte, error) {
	client, err := ssh.Dial("tcp", p.addr, p.config)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", p.addr, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Run(command); err != nil {
		return nil, fmt.Errorf("remote command failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// shellQuote single-quotes a path for the remote shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
