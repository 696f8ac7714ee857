package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Init creates a vhostdoctor workspace in dir
func Init(dir string, force bool, out io.Writer) error {
	wsPath := Path(dir)

	// Check if workspace already exists
	if _, err := os.Stat(wsPath); err == nil {
		if !force {
			return ErrWorkspaceExists
		}
		// Only the config is replaced; recorded state survives --force
		if err := os.Remove(ConfigPath(dir)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing config: %w", err)
		}
	}

	for _, d := range []string{wsPath, StateDir(dir)} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}

	content := fmt.Sprintf(defaultConfig, StateDir(dir), LogPath(dir))
	if err := writeFile(ConfigPath(dir), content); err != nil {
		return err
	}

	fmt.Fprintln(out, "Initialized vhostdoctor workspace in", wsPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Set ssh.host and credentials in", ConfigPath(dir))
	fmt.Fprintln(out, "  2. Run 'vhostdoctor diagnose <domain> --dry-run' to see the plan")
	fmt.Fprintln(out, "  3. Run 'vhostdoctor diagnose <domain>' to apply it")

	return nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	// Config may hold an SSH password
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

const defaultConfig = `# vhostdoctor configuration
# Every key can be overridden with VHOSTDOCTOR_<SECTION>_<KEY>, e.g. VHOSTDOCTOR_SSH_HOST

ssh:
  host: ""
  port: 22
  user: root
  # password: ""
  key_file: ~/.ssh/id_ed25519
  known_hosts_file: ~/.ssh/known_hosts
  insecure_ignore_host_key: false
  timeout: 30s
  command_timeout: 2m

paths:
  vhost_dir: /www/server/panel/vhost/nginx
  cert_dir: /www/server/panel/vhost/cert
  hosts_file: /etc/hosts
  web_root: /www/wwwroot
  log_dir: /www/wwwlogs

nginx:
  test_command: nginx -t
  restart_command: systemctl restart nginx
  php_socket: unix:/tmp/php-cgi-74.sock
  probe_served: true

hosts:
  # Domains that must never resolve to loopback
  problem_domains: []

state:
  dir: %s
  retention_days: 30

logging:
  level: info
  file: %s
  format: json
`
