package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/codefionn/pfortner/internal/consts"
)

// AppIdentity names the application the broker serves. The default rule
// sets derive their own-namespace patterns from it.
type AppIdentity struct {
	// Name is the application's short name (registry key, temp prefix).
	Name string
	// Vendor is the registry vendor namespace.
	Vendor string
	// InstallDirs are the trusted installation directories callers must
	// run from.
	InstallDirs []string
	// DataDirs are the application's own data directories, writable.
	DataDirs []string
	// UserDirs are user document locations, readable for automation.
	UserDirs []string
	// TempDir is the temp namespace root.
	TempDir string
	// InteractiveUser is the user account the service serves.
	InteractiveUser string
	// SelfName is the broker's own process name, always termination-guarded.
	SelfName string
}

// Rules is the immutable policy rule set, loaded once at service start and
// shared by reference across every connection worker.
type Rules struct {
	executables map[string]struct{}
	blocked     []string

	registryRead  []Pattern
	registryWrite []Pattern
	fileRead      []Pattern
	fileWrite     []Pattern

	guarded map[string]struct{}

	trustedDirs     []string
	interactiveUser string
	serviceAccounts map[string]struct{}
	adminGroups     map[string]struct{}

	rateWindow time.Duration
	rateLimit  int
}

// RuleFile is the JSON shape of an on-disk policy override. Absent fields
// keep their compiled-in defaults; present fields replace them entirely, so
// an override can only be reasoned about as a whole list.
type RuleFile struct {
	ExecutableAllowlist []string `json:"executableAllowlist,omitempty"`
	DangerousSequences  []string `json:"dangerousSequences,omitempty"`
	RegistryReadable    []string `json:"registryReadable,omitempty"`
	RegistryWritable    []string `json:"registryWritable,omitempty"`
	FileReadable        []string `json:"fileReadable,omitempty"`
	FileWritable        []string `json:"fileWritable,omitempty"`
	TerminationGuard    []string `json:"terminationGuard,omitempty"`
	TrustedDirs         []string `json:"trustedDirs,omitempty"`
	ServiceAccounts     []string `json:"serviceAccounts,omitempty"`
	AdminGroups         []string `json:"adminGroups,omitempty"`
	RateLimitWindowSecs int      `json:"rateLimitWindowSeconds,omitempty"`
	RateLimitPerWindow  int      `json:"rateLimitPerWindow,omitempty"`
}

// defaultExecutables is the compiled-in executable allowlist.
var defaultExecutables = []string{
	"notepad.exe",
	"calc.exe",
	"calculator.exe",
	"mspaint.exe",
	"explorer.exe",
	"chrome.exe",
	"firefox.exe",
	"msedge.exe",
	"winword.exe",
	"excel.exe",
	"powerpnt.exe",
	"outlook.exe",
	"snippingtool.exe",
}

// defaultDangerous is the compiled-in dangerous-input blocklist, written in
// readable form; entries are normalized at load the same way key text is
// normalized at evaluation.
var defaultDangerous = []string{
	"ctrl+alt+del",
	"ctrl+alt+delete",
	"win+l",
	"alt+f4",
	"win+r",
	"ctrl+shift+esc",
	"ctrl+shift+n",
	"ctrl+shift+p",
	"shift+delete",
	"shift+del",
	"format c:",
	"rm -rf",
	"del /q",
	"del /s",
	"shutdown /s",
	"shutdown /r",
	"reg delete",
	"taskkill /f",
}

// defaultGuarded names processes that may never be terminated through the
// broker, regardless of caller. Unix spellings included so the portable
// build behaves sensibly.
var defaultGuarded = []string{
	"system",
	"smss.exe",
	"csrss.exe",
	"wininit.exe",
	"winlogon.exe",
	"services.exe",
	"lsass.exe",
	"svchost.exe",
	"dwm.exe",
	"explorer.exe",
	"init",
	"systemd",
	"launchd",
	"kthreadd",
}

// defaultServiceAccounts are identities recognized as system/service
// callers in addition to the interactive user.
var defaultServiceAccounts = []string{
	"SYSTEM",
	"LOCAL SERVICE",
	"NETWORK SERVICE",
	"root",
}

// defaultAdminGroups are group memberships that satisfy the identity gate.
var defaultAdminGroups = []string{
	"Administrators",
	"admin",
	"sudo",
	"wheel",
}

// Defaults builds the compiled-in rule set for app.
func Defaults(app AppIdentity) *Rules {
	r := &Rules{
		interactiveUser: app.InteractiveUser,
		rateWindow:      consts.DefaultRateLimitWindow,
		rateLimit:       consts.DefaultRateLimitPerWindow,
	}
	r.setExecutables(defaultExecutables)
	r.setBlocked(defaultDangerous)
	r.setGuarded(append(guardSelf(app), defaultGuarded...))
	r.setServiceAccounts(defaultServiceAccounts)
	r.setAdminGroups(defaultAdminGroups)
	r.trustedDirs = normalizeDirs(app.InstallDirs)

	r.registryRead = CompilePatterns(registryReadDefaults())
	r.registryWrite = CompilePatterns(registryWriteDefaults(app))
	r.fileRead = CompilePatterns(fileReadDefaults(app))
	r.fileWrite = CompilePatterns(fileWriteDefaults(app))
	return r
}

// Load builds the rule set for app, overlaying the optional policy file at
// path. An empty path keeps the defaults.
func Load(path string, app AppIdentity) (*Rules, error) {
	r := Defaults(app)
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read rule file: %w", err)
	}
	var file RuleFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("policy: parse rule file %s: %w", path, err)
	}

	if file.ExecutableAllowlist != nil {
		r.setExecutables(file.ExecutableAllowlist)
	}
	if file.DangerousSequences != nil {
		r.setBlocked(file.DangerousSequences)
	}
	if file.RegistryReadable != nil {
		r.registryRead = CompilePatterns(file.RegistryReadable)
	}
	if file.RegistryWritable != nil {
		r.registryWrite = CompilePatterns(file.RegistryWritable)
	}
	if file.FileReadable != nil {
		r.fileRead = CompilePatterns(file.FileReadable)
	}
	if file.FileWritable != nil {
		r.fileWrite = CompilePatterns(file.FileWritable)
	}
	if file.TerminationGuard != nil {
		// The broker's own process stays guarded no matter what the file says.
		r.setGuarded(append(guardSelf(app), file.TerminationGuard...))
	}
	if file.TrustedDirs != nil {
		r.trustedDirs = normalizeDirs(file.TrustedDirs)
	}
	if file.ServiceAccounts != nil {
		r.setServiceAccounts(file.ServiceAccounts)
	}
	if file.AdminGroups != nil {
		r.setAdminGroups(file.AdminGroups)
	}
	if file.RateLimitWindowSecs > 0 {
		r.rateWindow = time.Duration(file.RateLimitWindowSecs) * time.Second
	}
	if file.RateLimitPerWindow > 0 {
		r.rateLimit = file.RateLimitPerWindow
	}
	return r, nil
}

// DefaultRuleFile renders the compiled-in rule set for app in the on-disk
// override shape. `pfortnerd -print-policy` emits it as a starting point for
// a custom policy file.
func DefaultRuleFile(app AppIdentity) RuleFile {
	return RuleFile{
		ExecutableAllowlist: append([]string(nil), defaultExecutables...),
		DangerousSequences:  append([]string(nil), defaultDangerous...),
		RegistryReadable:    registryReadDefaults(),
		RegistryWritable:    registryWriteDefaults(app),
		FileReadable:        fileReadDefaults(app),
		FileWritable:        fileWriteDefaults(app),
		TerminationGuard:    append(guardSelf(app), defaultGuarded...),
		TrustedDirs:         append([]string(nil), app.InstallDirs...),
		ServiceAccounts:     append([]string(nil), defaultServiceAccounts...),
		AdminGroups:         append([]string(nil), defaultAdminGroups...),
		RateLimitWindowSecs: int(consts.DefaultRateLimitWindow.Seconds()),
		RateLimitPerWindow:  consts.DefaultRateLimitPerWindow,
	}
}

func registryReadDefaults() []string {
	return []string{
		`HKCU\Software\**`,
		`HKLM\Software\**`,
		`HKCU\Control Panel\**`,
	}
}

func guardSelf(app AppIdentity) []string {
	if app.SelfName == "" {
		return nil
	}
	return []string{app.SelfName}
}

func registryWriteDefaults(app AppIdentity) []string {
	vendor := app.Vendor
	if vendor == "" {
		vendor = app.Name
	}
	patterns := []string{
		fmt.Sprintf(`HKCU\Software\%s\%s\**`, vendor, app.Name),
	}
	if app.Name != "" {
		patterns = append(patterns,
			fmt.Sprintf(`HKCU\Software\Microsoft\Windows\CurrentVersion\Run\%s`, app.Name))
	}
	return patterns
}

func fileReadDefaults(app AppIdentity) []string {
	patterns := fileWriteDefaults(app)
	for _, dir := range app.UserDirs {
		patterns = append(patterns, filepath.Join(dir, "**"))
	}
	return patterns
}

func fileWriteDefaults(app AppIdentity) []string {
	var patterns []string
	for _, dir := range app.DataDirs {
		patterns = append(patterns, filepath.Join(dir, "**"))
	}
	if app.TempDir != "" && app.Name != "" {
		patterns = append(patterns,
			filepath.Join(app.TempDir, strings.ToLower(app.Name)+"*"),
			filepath.Join(app.TempDir, strings.ToLower(app.Name)+"*", "**"))
	}
	return patterns
}

func (r *Rules) setExecutables(names []string) {
	r.executables = lowerSet(names)
}

func (r *Rules) setBlocked(seqs []string) {
	r.blocked = r.blocked[:0]
	for _, s := range seqs {
		if n := NormalizeKeys(s); n != "" {
			r.blocked = append(r.blocked, n)
		}
	}
}

func (r *Rules) setGuarded(names []string) {
	r.guarded = lowerSet(names)
}

func (r *Rules) setServiceAccounts(names []string) {
	r.serviceAccounts = lowerSet(names)
}

func (r *Rules) setAdminGroups(names []string) {
	r.adminGroups = lowerSet(names)
}

func lowerSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(strings.ToLower(n))
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func normalizeDirs(dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		d = strings.TrimRight(normalizePath(d), "/")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

func normalizePath(p string) string {
	return strings.ReplaceAll(strings.ToLower(p), "\\", "/")
}

// NormalizeKeys lowercases key text and strips all whitespace. Blocklist
// entries and candidate key sequences both go through it so matching cannot
// be dodged with case or spacing tricks.
func NormalizeKeys(keys string) string {
	var b strings.Builder
	b.Grow(len(keys))
	for _, r := range strings.ToLower(keys) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ExecutableAllowed reports whether the base name of fileName is in the
// allowlist. The comparison is case-insensitive on the base name only, so
// an allowlisted name cannot be smuggled in via a path prefix.
func (r *Rules) ExecutableAllowed(fileName string) bool {
	base := strings.ToLower(filepath.Base(strings.ReplaceAll(fileName, "\\", "/")))
	_, ok := r.executables[base]
	return ok
}

// BlockedSequence returns the first blocklisted sequence contained in the
// normalized key text.
func (r *Rules) BlockedSequence(keys string) (string, bool) {
	norm := NormalizeKeys(keys)
	for _, seq := range r.blocked {
		if strings.Contains(norm, seq) {
			return seq, true
		}
	}
	return "", false
}

// RegistryReadable reports whether keyPath matches the registry read set.
func (r *Rules) RegistryReadable(keyPath string) (Pattern, bool) {
	return MatchAny(r.registryRead, keyPath)
}

// RegistryWritable reports whether keyPath matches the registry write set.
// Matching the read set never implies a write match.
func (r *Rules) RegistryWritable(keyPath string) (Pattern, bool) {
	return MatchAny(r.registryWrite, keyPath)
}

// FileReadable reports whether filePath matches the file read set.
func (r *Rules) FileReadable(filePath string) (Pattern, bool) {
	return MatchAny(r.fileRead, filePath)
}

// FileWritable reports whether filePath matches the file write set.
func (r *Rules) FileWritable(filePath string) (Pattern, bool) {
	return MatchAny(r.fileWrite, filePath)
}

// Guarded reports whether processName may never be terminated.
func (r *Rules) Guarded(processName string) bool {
	_, ok := r.guarded[strings.ToLower(strings.TrimSpace(processName))]
	return ok
}

// IdentityRecognized reports whether identity (with its group memberships)
// passes the caller gate: the configured interactive user, a recognized
// service account, or a member of an administrative group.
func (r *Rules) IdentityRecognized(identity string, groups []string) bool {
	id := strings.ToLower(strings.TrimSpace(identity))
	if id == "" {
		return false
	}
	if r.interactiveUser != "" && id == strings.ToLower(r.interactiveUser) {
		return true
	}
	if _, ok := r.serviceAccounts[id]; ok {
		return true
	}
	for _, g := range groups {
		if _, ok := r.adminGroups[strings.ToLower(g)]; ok {
			return true
		}
	}
	return false
}

// PathTrusted reports whether processPath lies under a trusted installation
// directory. An empty path is never trusted, and neither is one carrying
// relative segments, which could prefix-match a trusted directory while
// resolving elsewhere.
func (r *Rules) PathTrusted(processPath string) bool {
	if processPath == "" {
		return false
	}
	if hasDotSegments(splitPath(processPath)) {
		return false
	}
	norm := normalizePath(processPath)
	for _, dir := range r.trustedDirs {
		if strings.HasPrefix(norm, dir+"/") {
			return true
		}
	}
	return false
}

// RateWindow returns the configured rate-limit window.
func (r *Rules) RateWindow() time.Duration {
	return r.rateWindow
}

// RateLimit returns the per-window request budget.
func (r *Rules) RateLimit() int {
	return r.rateLimit
}
