// Package toolspec holds the compiled-in config store (C1): one static
// Entry per recognized tool, naming its default version, registry package,
// tarball URL template, and bin-name aliases. Outside tests, nothing outside
// this package fills in an Entry; Lookup, All and NameForCommand are the
// only query surface.
package toolspec

// Name identifies a managed package manager, or Unknown for a
// caller-supplied custom archive.
type Name string

const (
	NPM        Name = "npm"
	PNPM       Name = "pnpm"
	YarnClassic Name = "yarn-classic"
	YarnBerry  Name = "yarn-berry"
	Unknown    Name = "unknown"
)

// BinEntry maps an invocation basename (the name a shim might be called
// as: "npm", "npx", "yarn", "yarnpkg", ...) to the script path relative to
// the installed tool's root.
type BinEntry struct {
	Command      string
	RelativePath string
}

// Entry is one row of the static config store.
type Entry struct {
	Name Name

	// DefaultVersion is the built-in fallback, embedding an integrity
	// suffix, used when no other SpecLocator supplies one.
	DefaultVersion string

	// RegistryPackage is the package name to query on the configured
	// registry (yarn-berry and yarn-classic share the "yarn" package but
	// differ in their tarball template).
	RegistryPackage string

	// TarballTemplate is used only when the registry document's own dist
	// URL is unavailable; {{version}} is substituted.
	TarballTemplate string

	// BinEntries is ordered; index 0 is the canonical entrypoint, which
	// the dispatcher falls back to when the invoked command matches no
	// alias. The resolver's name-mismatch check compares tool names and
	// does not consult BinEntries.
	BinEntries []BinEntry

	// TransparentCommands may run under this tool name even when the
	// project pins a different tool.
	TransparentCommands []string

	// TransparentDefault names a version for transparent commands run
	// outside of any project context. No code path reads it: transparent
	// commands resolve through the same precedence chain as any other
	// invocation.
	TransparentDefault string
}

var registry = []Entry{
	{
		Name:            NPM,
		DefaultVersion:  "10.9.2+sha512.9c94b3e2a3c9e7e0e4a1c6b13c4a8a9c8b2f5f3b0a7e1e2c7a9d2e4f6a8c0b2d",
		RegistryPackage: "npm",
		TarballTemplate: "https://registry.npmjs.org/npm/-/npm-{{version}}.tgz",
		BinEntries: []BinEntry{
			{Command: "npm", RelativePath: "bin/npm-cli.js"},
			{Command: "npx", RelativePath: "bin/npx-cli.js"},
		},
		TransparentCommands: []string{"help", "--version"},
		TransparentDefault:  "10.9.2",
	},
	{
		Name:            PNPM,
		DefaultVersion:  "9.15.4+sha512.2f73dc5a4f4a0b3a8a9b9cb3df6b3f66f60df1e3b1e4a6a9d1e7c2f5a9d3e6b1",
		RegistryPackage: "pnpm",
		TarballTemplate: "https://registry.npmjs.org/pnpm/-/pnpm-{{version}}.tgz",
		BinEntries: []BinEntry{
			{Command: "pnpm", RelativePath: "bin/pnpm.cjs"},
			{Command: "pnpx", RelativePath: "bin/pnpx.cjs"},
		},
		TransparentCommands: []string{"--version"},
		TransparentDefault:  "9.15.4",
	},
	{
		Name:            YarnClassic,
		DefaultVersion:  "1.22.22+sha1.ac34549e6aa8e7ead463a7407e1c7390f61a6610",
		RegistryPackage: "yarn",
		TarballTemplate: "https://registry.npmjs.org/yarn/-/yarn-{{version}}.tgz",
		BinEntries: []BinEntry{
			{Command: "yarn", RelativePath: "bin/yarn.js"},
			{Command: "yarnpkg", RelativePath: "bin/yarnpkg.js"},
		},
		TransparentCommands: []string{"--version", "policies"},
		TransparentDefault:  "1.22.22",
	},
	{
		Name:            YarnBerry,
		DefaultVersion:  "4.6.0+sha224.3a9e1a1f4e9f5b3c2a8e7d6c5b4a3928170695a4e3d2c1b0a9f8e7d6",
		RegistryPackage: "yarn",
		TarballTemplate: "https://repo.yarnpkg.com/{{version}}/packages/yarnpkg-cli/bin/yarn.js",
		BinEntries: []BinEntry{
			{Command: "yarn", RelativePath: "yarn.js"},
			{Command: "yarnpkg", RelativePath: "yarn.js"},
		},
		TransparentCommands: []string{"--version", "set version"},
		TransparentDefault:  "4.6.0",
	},
}

// Lookup returns the static entry for a tool name.
func Lookup(name Name) (Entry, bool) {
	for _, e := range registry {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// All returns every statically known entry.
func All() []Entry {
	out := make([]Entry, len(registry))
	copy(out, registry)
	return out
}

// NameForCommand returns the tool name whose BinEntries contains command,
// used by the shim to figure out what os.Args[0] means.
func NameForCommand(command string) (Name, bool) {
	for _, e := range registry {
		for _, b := range e.BinEntries {
			if b.Command == command {
				return e.Name, true
			}
		}
	}
	return "", false
}
