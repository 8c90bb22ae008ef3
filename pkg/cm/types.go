// pkg/cm/types.go

package cm

// Cluster is one entry of the management plane's cluster inventory.
type Cluster struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Version      string `json:"version"`
	FullVersion  string `json:"fullVersion"`
	EntityStatus string `json:"entityStatus"`
}

// Service is a managed service inside a cluster (e.g. type OZONE).
type Service struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	ServiceState string `json:"serviceState"`
}

// HostRef points from a role to the host inventory.
type HostRef struct {
	HostID string `json:"hostId"`
}

// Role is one role instance of a service, bound to a host. Host IDs and
// hostnames are different namespaces; resolving one to the other requires a
// separate host lookup.
type Role struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	RoleState string  `json:"roleState"`
	HostRef   HostRef `json:"hostRef"`
}

// Host is an entry of the host inventory.
type Host struct {
	HostID   string `json:"hostId"`
	Hostname string `json:"hostname"`
}

// RoleConfigGroup is a named bundle of role configuration shared by all
// roles assigned to it.
type RoleConfigGroup struct {
	Name         string `json:"name"`
	RoleType     string `json:"roleType"`
	RoleTypeName string `json:"roleTypeName"`
	Base         bool   `json:"base"`
}

// Type returns whichever of the two role-type fields the API populated.
// Older API versions use roleTypeName.
func (g RoleConfigGroup) Type() string {
	if g.RoleType != "" {
		return g.RoleType
	}
	return g.RoleTypeName
}

// ConfigItem is one configuration entry; which value field is populated
// depends on the view and on whether the setting is explicitly set.
type ConfigItem struct {
	Name           string `json:"name"`
	Value          string `json:"value"`
	EffectiveValue string `json:"effectiveValue"`
	DisplayValue   string `json:"displayValue"`
	Default        string `json:"default"`
}

// Resolved returns the first populated value field, in the precedence order
// the management plane documents: explicit value, effective value, display
// value, default.
func (i ConfigItem) Resolved() string {
	for _, v := range []string{i.Value, i.EffectiveValue, i.DisplayValue, i.Default} {
		if v != "" {
			return v
		}
	}
	return ""
}

// ConfigList is the body of every config read/write endpoint.
type ConfigList struct {
	Items []ConfigItem `json:"items"`
}

// Get returns the resolved value of name, or "" when absent.
func (l ConfigList) Get(name string) string {
	for _, item := range l.Items {
		if item.Name == name {
			return item.Resolved()
		}
	}
	return ""
}

// Command is an asynchronous management-plane command, polled by ID until
// Active goes false.
type Command struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Active        bool   `json:"active"`
	Success       bool   `json:"success"`
	ResultMessage string `json:"resultMessage"`
}

type clusterList struct {
	Items []Cluster `json:"items"`
}

type serviceList struct {
	Items []Service `json:"items"`
}

type roleList struct {
	Items []Role `json:"items"`
}

type hostList struct {
	Items []Host `json:"items"`
}

type roleConfigGroupList struct {
	Items []RoleConfigGroup `json:"items"`
}

type commandList struct {
	Items []Command `json:"items"`
}

type roleNameList struct {
	Items []string `json:"items"`
}
