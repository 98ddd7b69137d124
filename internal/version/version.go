package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Name is the program name reported to peers and in help output.
const Name = "consult"

func String() string {
	return Name + " " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// UserAgent identifies outbound HTTP requests.
func UserAgent() string {
	return Name + "/" + Version
}
