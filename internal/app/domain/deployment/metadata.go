package deployment

// Metadata is the application configuration document attached to a
// deployment: plain environment variables, secret values, and named resource
// bindings the runtime materialises for the workload.
type Metadata struct {
	Env     map[string]string        `json:"env,omitempty"`
	Secrets map[string]string        `json:"secrets,omitempty"`
	MySQL   map[string]MySQLBinding  `json:"mysql,omitempty"`
	PubSub  map[string]PubSubBinding `json:"pubsub,omitempty"`
}

// MySQLBinding points a named binding at a database.
type MySQLBinding struct {
	URL             string `json:"url"`
	RootCertificate string `json:"root_certificate,omitempty"`
}

// PubSubBinding points a named binding at a pub/sub namespace.
type PubSubBinding struct {
	Namespace string `json:"namespace"`
}

// PackedMetadata is the handoff form given to the runtime controller when a
// deployment starts: secrets are folded into env and the package ref is
// embedded so the document is self-contained.
type PackedMetadata struct {
	Version string                   `json:"version"`
	Package string                   `json:"package"`
	Env     map[string]string        `json:"env"`
	MySQL   map[string]MySQLBinding  `json:"mysql,omitempty"`
	PubSub  map[string]PubSubBinding `json:"pubsub,omitempty"`
}

// Packed builds the runtime handoff document for the given package ref.
func (m Metadata) Packed(packageRef string) PackedMetadata {
	env := make(map[string]string, len(m.Env)+len(m.Secrets))
	for k, v := range m.Env {
		env[k] = v
	}
	for k, v := range m.Secrets {
		env[k] = v
	}
	return PackedMetadata{
		Version: "app",
		Package: packageRef,
		Env:     env,
		MySQL:   m.MySQL,
		PubSub:  m.PubSub,
	}
}

// Clone returns a deep copy so stored metadata cannot be mutated through
// shared maps.
func (m Metadata) Clone() Metadata {
	out := Metadata{}
	if len(m.Env) > 0 {
		out.Env = make(map[string]string, len(m.Env))
		for k, v := range m.Env {
			out.Env[k] = v
		}
	}
	if len(m.Secrets) > 0 {
		out.Secrets = make(map[string]string, len(m.Secrets))
		for k, v := range m.Secrets {
			out.Secrets[k] = v
		}
	}
	if len(m.MySQL) > 0 {
		out.MySQL = make(map[string]MySQLBinding, len(m.MySQL))
		for k, v := range m.MySQL {
			out.MySQL[k] = v
		}
	}
	if len(m.PubSub) > 0 {
		out.PubSub = make(map[string]PubSubBinding, len(m.PubSub))
		for k, v := range m.PubSub {
			out.PubSub[k] = v
		}
	}
	return out
}
