package attack

import (
	"regexp"
	"strings"
)

var techniqueIDPattern = regexp.MustCompile(`^T\d+(\.\d+)?$`)

// Technique is static ATT&CK metadata for one parent technique id.
type Technique struct {
	Name    string
	Tactics []string
}

// catalog covers the techniques commonly exercised by emulation operations.
// Ids missing here fall back to Describe's unknown placeholder.
var catalog = map[string]Technique{
	"T1003": {Name: "OS Credential Dumping", Tactics: []string{"credential-access"}},
	"T1005": {Name: "Data from Local System", Tactics: []string{"collection"}},
	"T1012": {Name: "Query Registry", Tactics: []string{"discovery"}},
	"T1016": {Name: "System Network Configuration Discovery", Tactics: []string{"discovery"}},
	"T1018": {Name: "Remote System Discovery", Tactics: []string{"discovery"}},
	"T1021": {Name: "Remote Services", Tactics: []string{"lateral-movement"}},
	"T1027": {Name: "Obfuscated Files or Information", Tactics: []string{"defense-evasion"}},
	"T1033": {Name: "System Owner/User Discovery", Tactics: []string{"discovery"}},
	"T1041": {Name: "Exfiltration Over C2 Channel", Tactics: []string{"exfiltration"}},
	"T1046": {Name: "Network Service Discovery", Tactics: []string{"discovery"}},
	"T1047": {Name: "Windows Management Instrumentation", Tactics: []string{"execution"}},
	"T1053": {Name: "Scheduled Task/Job", Tactics: []string{"execution", "persistence", "privilege-escalation"}},
	"T1055": {Name: "Process Injection", Tactics: []string{"defense-evasion", "privilege-escalation"}},
	"T1057": {Name: "Process Discovery", Tactics: []string{"discovery"}},
	"T1059": {Name: "Command and Scripting Interpreter", Tactics: []string{"execution"}},
	"T1069": {Name: "Permission Groups Discovery", Tactics: []string{"discovery"}},
	"T1070": {Name: "Indicator Removal", Tactics: []string{"defense-evasion"}},
	"T1078": {Name: "Valid Accounts", Tactics: []string{"defense-evasion", "persistence", "privilege-escalation", "initial-access"}},
	"T1082": {Name: "System Information Discovery", Tactics: []string{"discovery"}},
	"T1083": {Name: "File and Directory Discovery", Tactics: []string{"discovery"}},
	"T1087": {Name: "Account Discovery", Tactics: []string{"discovery"}},
	"T1090": {Name: "Proxy", Tactics: []string{"command-and-control"}},
	"T1095": {Name: "Non-Application Layer Protocol", Tactics: []string{"command-and-control"}},
	"T1105": {Name: "Ingress Tool Transfer", Tactics: []string{"command-and-control"}},
	"T1110": {Name: "Brute Force", Tactics: []string{"credential-access"}},
	"T1112": {Name: "Modify Registry", Tactics: []string{"defense-evasion"}},
	"T1135": {Name: "Network Share Discovery", Tactics: []string{"discovery"}},
	"T1140": {Name: "Deobfuscate/Decode Files or Information", Tactics: []string{"defense-evasion"}},
	"T1190": {Name: "Exploit Public-Facing Application", Tactics: []string{"initial-access"}},
	"T1204": {Name: "User Execution", Tactics: []string{"execution"}},
	"T1218": {Name: "System Binary Proxy Execution", Tactics: []string{"defense-evasion"}},
	"T1486": {Name: "Data Encrypted for Impact", Tactics: []string{"impact"}},
	"T1543": {Name: "Create or Modify System Process", Tactics: []string{"persistence", "privilege-escalation"}},
	"T1547": {Name: "Boot or Logon Autostart Execution", Tactics: []string{"persistence", "privilege-escalation"}},
	"T1548": {Name: "Abuse Elevation Control Mechanism", Tactics: []string{"privilege-escalation", "defense-evasion"}},
	"T1550": {Name: "Use Alternate Authentication Material", Tactics: []string{"defense-evasion", "lateral-movement"}},
	"T1552": {Name: "Unsecured Credentials", Tactics: []string{"credential-access"}},
	"T1562": {Name: "Impair Defenses", Tactics: []string{"defense-evasion"}},
	"T1566": {Name: "Phishing", Tactics: []string{"initial-access"}},
	"T1569": {Name: "System Services", Tactics: []string{"execution"}},
	"T1570": {Name: "Lateral Tool Transfer", Tactics: []string{"lateral-movement"}},
	"T1573": {Name: "Encrypted Channel", Tactics: []string{"command-and-control"}},
}

// IsValid reports whether id matches the technique id pattern, with or
// without a sub-technique suffix.
func IsValid(id string) bool {
	return techniqueIDPattern.MatchString(strings.TrimSpace(id))
}

// Normalize strips a trailing sub-technique suffix so T1059.001 and
// T1059.002 both collapse into T1059. Input is trimmed and upper-cased.
func Normalize(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	if idx := strings.IndexByte(id, '.'); idx > 0 {
		return id[:idx]
	}
	return id
}

// Lookup returns catalog metadata for a normalized technique id.
func Lookup(id string) (Technique, bool) {
	t, ok := catalog[Normalize(id)]
	return t, ok
}

// Describe returns catalog metadata, falling back to an unknown placeholder
// for ids outside the static table.
func Describe(id string) Technique {
	if t, ok := Lookup(id); ok {
		return t
	}
	return Technique{Name: "Unknown Technique", Tactics: []string{"unknown"}}
}
