// pkg/cm/client.go

package cm

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Package cm is a thin client for the Cloudera Manager REST API
// (/api/{version}). It covers exactly the surface the bootstrap workflow
// consumes: inventory listing, configuration reads and writes, role/service
// commands, and command polling.

const defaultTimeout = 60 * time.Second

// Config describes how to reach the management plane.
type Config struct {
	BaseURL    string
	APIVersion string
	Username   string
	Password   string
	Insecure   bool
	CABundle   string
	Timeout    time.Duration
}

// Client talks to one Cloudera Manager instance.
type Client struct {
	baseURL    string
	apiVersion string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient builds a client with the requested TLS posture: verification on
// (default), off (Insecure), or against an explicit CA bundle.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, cerr.New("cm: base URL is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v49"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.Insecure {
		tlsCfg.InsecureSkipVerify = true
	} else if cfg.CABundle != "" {
		pem, err := os.ReadFile(cfg.CABundle)
		if err != nil {
			return nil, cerr.Wrapf(err, "cm: failed to read CA bundle %s", cfg.CABundle)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, cerr.Newf("cm: no certificates parsed from %s", cfg.CABundle)
		}
		tlsCfg.RootCAs = pool
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion: cfg.APIVersion,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &http.Transport{TLSClientConfig: tlsCfg},
		},
	}, nil
}

// BaseHost returns the hostname portion of the configured base URL. The
// workflow runs consensus CLI commands on the management host, so this
// extraction is load-bearing, not cosmetic.
func (c *Client) BaseHost() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Hostname() == "" {
		return "", cerr.Newf("cm: cannot extract host from base URL %q", c.baseURL)
	}
	return u.Hostname(), nil
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("%s/api/%s%s", c.baseURL, c.apiVersion, path)
}

func (c *Client) request(ctx context.Context, method, path string, params url.Values, body, out any) error {
	logger := otelzap.Ctx(ctx)

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return cerr.Wrap(err, "cm: failed to marshal request body")
		}
		reader = bytes.NewReader(raw)
	}

	fullURL := c.url(path)
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return cerr.Wrapf(err, "cm: failed to build %s %s", method, path)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.Debug("Management API request",
		zap.String("method", method),
		zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return cerr.Wrapf(err, "cm: %s %s failed", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return cerr.Wrapf(err, "cm: failed to read response for %s %s", method, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return cerr.Newf("cm: HTTP %d for %s %s: %s", resp.StatusCode, method, fullURL, strings.TrimSpace(string(raw)))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return cerr.Wrapf(err, "cm: failed to decode response for %s %s", method, path)
		}
	}
	return nil
}

func esc(s string) string { return url.PathEscape(s) }

// ListClusters returns the cluster inventory.
func (c *Client) ListClusters(ctx context.Context) ([]Cluster, error) {
	var list clusterList
	if err := c.request(ctx, http.MethodGet, "/clusters", nil, nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// ListServices returns the services of a cluster.
func (c *Client) ListServices(ctx context.Context, cluster string) ([]Service, error) {
	var list serviceList
	path := fmt.Sprintf("/clusters/%s/services", esc(cluster))
	if err := c.request(ctx, http.MethodGet, path, nil, nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// ListRoles returns the role instances of a service.
func (c *Client) ListRoles(ctx context.Context, cluster, service string) ([]Role, error) {
	var list roleList
	path := fmt.Sprintf("/clusters/%s/services/%s/roles", esc(cluster), esc(service))
	if err := c.request(ctx, http.MethodGet, path, nil, nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// ServiceConfig reads service-level configuration.
func (c *Client) ServiceConfig(ctx context.Context, cluster, service, view string) (ConfigList, error) {
	var cfg ConfigList
	path := fmt.Sprintf("/clusters/%s/services/%s/config", esc(cluster), esc(service))
	err := c.request(ctx, http.MethodGet, path, viewParams(view), nil, &cfg)
	return cfg, err
}

// RoleConfig reads the configuration of one role instance.
func (c *Client) RoleConfig(ctx context.Context, cluster, service, role, view string) (ConfigList, error) {
	var cfg ConfigList
	path := fmt.Sprintf("/clusters/%s/services/%s/roles/%s/config", esc(cluster), esc(service), esc(role))
	err := c.request(ctx, http.MethodGet, path, viewParams(view), nil, &cfg)
	return cfg, err
}

// RoleConfigGroups lists the role config groups of a service.
func (c *Client) RoleConfigGroups(ctx context.Context, cluster, service string) ([]RoleConfigGroup, error) {
	var list roleConfigGroupList
	path := fmt.Sprintf("/clusters/%s/services/%s/roleConfigGroups", esc(cluster), esc(service))
	if err := c.request(ctx, http.MethodGet, path, nil, nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// RoleConfigGroupConfig reads the configuration of a role config group.
func (c *Client) RoleConfigGroupConfig(ctx context.Context, cluster, service, group, view string) (ConfigList, error) {
	var cfg ConfigList
	path := fmt.Sprintf("/clusters/%s/services/%s/roleConfigGroups/%s/config", esc(cluster), esc(service), esc(group))
	err := c.request(ctx, http.MethodGet, path, viewParams(view), nil, &cfg)
	return cfg, err
}

// UpdateServiceConfig writes service-level configuration items.
func (c *Client) UpdateServiceConfig(ctx context.Context, cluster, service string, items map[string]string) (ConfigList, error) {
	var cfg ConfigList
	path := fmt.Sprintf("/clusters/%s/services/%s/config", esc(cluster), esc(service))
	err := c.request(ctx, http.MethodPut, path, nil, toConfigList(items), &cfg)
	return cfg, err
}

// UpdateRoleConfigGroup writes configuration items of a role config group.
func (c *Client) UpdateRoleConfigGroup(ctx context.Context, cluster, service, group string, items map[string]string) (ConfigList, error) {
	var cfg ConfigList
	path := fmt.Sprintf("/clusters/%s/services/%s/roleConfigGroups/%s/config", esc(cluster), esc(service), esc(group))
	err := c.request(ctx, http.MethodPut, path, nil, toConfigList(items), &cfg)
	return cfg, err
}

// Host resolves a host ID to its inventory entry.
func (c *Client) Host(ctx context.Context, hostID string) (Host, error) {
	var h Host
	err := c.request(ctx, http.MethodGet, "/hosts/"+esc(hostID), nil, nil, &h)
	return h, err
}

// HostMap returns the full hostId -> hostname mapping in one call.
func (c *Client) HostMap(ctx context.Context) (map[string]string, error) {
	var list hostList
	if err := c.request(ctx, http.MethodGet, "/hosts", nil, nil, &list); err != nil {
		return nil, err
	}
	m := make(map[string]string, len(list.Items))
	for _, h := range list.Items {
		if h.Hostname != "" {
			m[h.HostID] = h.Hostname
		} else {
			m[h.HostID] = h.HostID
		}
	}
	return m, nil
}

// ServiceCommand issues a service-level command (start, stop, ...).
func (c *Client) ServiceCommand(ctx context.Context, cluster, service, command string) (Command, error) {
	var cmd Command
	path := fmt.Sprintf("/clusters/%s/services/%s/commands/%s", esc(cluster), esc(service), esc(command))
	// CM requires a JSON body on command POSTs, even an empty one.
	err := c.request(ctx, http.MethodPost, path, nil, struct{}{}, &cmd)
	return cmd, err
}

// RoleCommand issues a role-level command (start, stop, ...) for the named
// role instances.
func (c *Client) RoleCommand(ctx context.Context, cluster, service, command string, roleNames []string) ([]Command, error) {
	var list commandList
	path := fmt.Sprintf("/clusters/%s/services/%s/roleCommands/%s", esc(cluster), esc(service), esc(command))
	err := c.request(ctx, http.MethodPost, path, nil, roleNameList{Items: roleNames}, &list)
	return list.Items, err
}

// GetCommand fetches the current state of an asynchronous command.
func (c *Client) GetCommand(ctx context.Context, id int64) (Command, error) {
	var cmd Command
	err := c.request(ctx, http.MethodGet, fmt.Sprintf("/commands/%d", id), nil, nil, &cmd)
	return cmd, err
}

// WaitForCommand polls a command until it is no longer active or the
// timeout elapses; the last observed state is returned either way.
func (c *Client) WaitForCommand(ctx context.Context, id int64, timeout, interval time.Duration) (Command, error) {
	deadline := time.Now().Add(timeout)
	var last Command
	for time.Now().Before(deadline) {
		cmd, err := c.GetCommand(ctx, id)
		if err != nil {
			return last, err
		}
		last = cmd
		if !cmd.Active {
			return cmd, nil
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(interval):
		}
	}
	return last, cerr.Newf("cm: command %d still active after %s", id, timeout)
}

func viewParams(view string) url.Values {
	if view == "" {
		return nil
	}
	return url.Values{"view": []string{view}}
}

func toConfigList(items map[string]string) ConfigList {
	list := ConfigList{Items: make([]ConfigItem, 0, len(items))}
	for name, value := range items {
		list.Items = append(list.Items, ConfigItem{Name: name, Value: value})
	}
	return list
}
