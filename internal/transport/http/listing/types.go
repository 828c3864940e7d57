package listing

// Provider describes the backend the relay forwards to.
type Provider interface {
	Name() string
	Model() string
	// Ready is false while no credential is configured.
	Ready() bool
}
