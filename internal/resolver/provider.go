package resolver

import "strings"

// Provider is the tagged classification of a URL against the fixed set of
// known services. Classification happens once per routing step; there is no
// silent substring fallthrough inside the stages themselves.
type Provider int

const (
	ProviderUnknown Provider = iota
	ProviderHubCDNDirect
	ProviderBypass
	ProviderHBLinks
	ProviderHubDrive
	ProviderHubCloud
	ProviderHubCDN
	ProviderDirectFile
)

func (p Provider) String() string {
	switch p {
	case ProviderHubCDNDirect:
		return "hubcdn-direct"
	case ProviderBypass:
		return "bypass"
	case ProviderHBLinks:
		return "hblinks"
	case ProviderHubDrive:
		return "hubdrive"
	case ProviderHubCloud:
		return "hubcloud"
	case ProviderHubCDN:
		return "hubcdn"
	case ProviderDirectFile:
		return "direct"
	default:
		return "unknown"
	}
}

// Intermediate ad/timer pages that wrap the real provider URL.
var bypassHosts = []string{
	"taazabull24",
	"viralxns",
	"try2link",
	"techyboy4u",
	"court.fit",
}

// Hosts serving the final payload directly; reaching one of these ends the
// pipeline as done.
var directHosts = []string{
	"pixeldra",
	"r2.dev",
	"workers.dev",
	"gofile.io",
	"fsl.buzz",
}

// Classify maps a URL to the stage that should handle it next. Order matters:
// the hubcdn.xyz short-link is checked before the bypass patterns because
// some ad pages embed it verbatim.
func Classify(url string) Provider {
	return classify(url, false)
}

// ClassifyAfterBypass re-runs classification with the bypass patterns
// excluded. The pipeline uses it when the bypass loop aborted on a URL, so
// the remaining provider patterns still get a chance at it.
func ClassifyAfterBypass(url string) Provider {
	return classify(url, true)
}

func classify(url string, skipBypass bool) Provider {
	u := strings.ToLower(url)

	if strings.Contains(u, "hubcdn.xyz") {
		return ProviderHubCDNDirect
	}
	if !skipBypass {
		for _, h := range bypassHosts {
			if strings.Contains(u, h) {
				return ProviderBypass
			}
		}
	}
	if strings.Contains(u, "hblinks") {
		return ProviderHBLinks
	}
	if strings.Contains(u, "hubdrive") {
		return ProviderHubDrive
	}
	if strings.Contains(u, "hubcloud") {
		return ProviderHubCloud
	}
	if strings.Contains(u, "hubcdn") {
		return ProviderHubCDN
	}
	for _, h := range directHosts {
		if strings.Contains(u, h) {
			return ProviderDirectFile
		}
	}
	if hasVideoExtension(u) {
		return ProviderDirectFile
	}
	return ProviderUnknown
}

func hasVideoExtension(u string) bool {
	for _, ext := range []string{".mkv", ".mp4", ".avi", ".zip"} {
		if strings.HasSuffix(u, ext) || strings.Contains(u, ext+"?") {
			return true
		}
	}
	return false
}
