package deployment

// Metadata identifies one published build of the payload.
type Metadata struct {
	// Version is the published version; metadata compare by version only.
	Version string
	// RepositoryID names the repository the build was discovered in.
	RepositoryID string
	// ArtifactLocation is the local artifact path once the build is fetched.
	ArtifactLocation string
	// ProcessID is the child process id once the build is launched.
	ProcessID int
}

// SameVersion reports whether m and other describe the same build.
// A nil side never matches.
func (m *Metadata) SameVersion(other *Metadata) bool {
	if m == nil || other == nil {
		return false
	}

	return m.Version == other.Version
}

// WithArtifactLocation returns a copy of m pointing at path.
func (m Metadata) WithArtifactLocation(path string) *Metadata {
	m.ArtifactLocation = path
	return &m
}

// WithProcessID returns a copy of m bound to the launched process.
func (m Metadata) WithProcessID(pid int) *Metadata {
	m.ProcessID = pid
	return &m
}

// Application is the deployment state of one cycle.
type Application struct {
	// Current is the instance running now, nil before the first successful launch.
	Current *Metadata
	// Latest is the newest build discovered in this cycle.
	Latest *Metadata
}

// NewApplication starts a cycle state carrying over the running instance.
func NewApplication(current *Metadata) *Application {
	return &Application{Current: current}
}

// IsSameVersion reports whether the latest build is already running.
func (a *Application) IsSameVersion() bool {
	return a.Current.SameVersion(a.Latest)
}

// ShouldLaunch reports whether a launch of Latest is allowed: a build is
// known and it is not the one already running.
func (a *Application) ShouldLaunch() bool {
	return a.Latest != nil && !a.IsSameVersion()
}
