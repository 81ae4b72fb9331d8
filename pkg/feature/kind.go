package feature

// Kind is the closed set of feature variants.
type Kind uint8

const (
	kindInvalid Kind = iota
	KindMatchedRule
	KindCharacteristic
	KindString
	KindSubstring
	KindRegex
	KindBytes
	KindClass
	KindNamespace
	KindAPI
	KindNumber
	KindArch
	KindOS
	KindFormat

	kindCount
)

// kindNames holds the display name of each kind.
var kindNames = [kindCount]string{
	kindInvalid:        "invalid",
	KindMatchedRule:    "match",
	KindCharacteristic: "characteristic",
	KindString:         "string",
	KindSubstring:      "substring",
	KindRegex:          "regex",
	KindBytes:          "bytes",
	KindClass:          "class",
	KindNamespace:      "namespace",
	KindAPI:            "api",
	KindNumber:         "number",
	KindArch:           "arch",
	KindOS:             "os",
	KindFormat:         "format",
}

// String returns the display name of the kind, e.g. "match" for KindMatchedRule.
func (k Kind) String() string {
	if k >= kindCount {
		return "invalid"
	}
	return kindNames[k]
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return k > kindInvalid && k < kindCount
}

// KindByName looks up a kind by its display name.
func KindByName(name string) (Kind, bool) {
	for k := KindMatchedRule; k < kindCount; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return kindInvalid, false
}

// Architectures. Other candidates: PE machine types.
const (
	ArchI386    = "i386"
	ArchAMD64   = "amd64"
	ArchAArch64 = "aarch64"
	ArchARM     = "arm"
	ArchAny     = "any" // dotnet
)

// Operating systems.
const (
	OSWindows = "windows"
	OSLinux   = "linux"
	OSMacOS   = "macos"
	OSAndroid = "android"
	OSAny     = "any" // dotnet

	// OSAuto is internal only and must not appear in rules.
	OSAuto = "auto"
)

// elfOSNames are the OS identifiers derived from ELF OS ABI and note sections.
var elfOSNames = []string{
	"hpux", "netbsd", "linux", "hurd", "86open", "solaris", "aix", "irix",
	"freebsd", "tru64", "modesto", "openbsd", "openvms", "nsk", "aros",
	"fenixos", "cloud", "syllable", "nacl", "android", "dragonfly",
	"illumos", "zos", "unknown",
}

// File formats usable in rules.
const (
	FormatPE     = "pe"
	FormatELF    = "elf"
	FormatDotNet = "dotnet"
	FormatAPK    = "apk"
)

// Internal-only file formats, not to be used in rules.
const (
	FormatAuto       = "auto"
	FormatSC32       = "sc32"
	FormatSC64       = "sc64"
	FormatCAPE       = "cape"
	FormatDrakvuf    = "drakvuf"
	FormatVMRay      = "vmray"
	FormatBinExport2 = "binexport2"
	FormatFreeze     = "freeze"
	FormatResult     = "result"
	FormatBinjaDB    = "binja_database"
	FormatFrida      = "frida"
	FormatUnknown    = "unknown"
)

var (
	validArch = map[string]bool{
		ArchI386: true, ArchAMD64: true, ArchAArch64: true, ArchARM: true, ArchAny: true,
	}
	validOS = func() map[string]bool {
		m := map[string]bool{OSWindows: true, OSLinux: true, OSMacOS: true, OSAndroid: true, OSAny: true}
		for _, name := range elfOSNames {
			m[name] = true
		}
		return m
	}()
	validFormat = map[string]bool{
		FormatPE: true, FormatELF: true, FormatDotNet: true, FormatAPK: true,
	}

	// StaticFormats are the formats analyzed by static extractors.
	StaticFormats = map[string]bool{
		FormatSC32: true, FormatSC64: true, FormatPE: true, FormatELF: true,
		FormatDotNet: true, FormatFreeze: true, FormatResult: true,
		FormatBinExport2: true, FormatBinjaDB: true,
	}

	// DynamicFormats are the formats analyzed by dynamic extractors.
	DynamicFormats = map[string]bool{
		FormatCAPE: true, FormatDrakvuf: true, FormatVMRay: true,
		FormatFreeze: true, FormatResult: true, FormatFrida: true,
	}
)

// ValidArch reports whether s may appear in an arch feature of a rule.
func ValidArch(s string) bool { return validArch[s] }

// ValidOS reports whether s may appear in an os feature of a rule.
func ValidOS(s string) bool { return validOS[s] }

// ValidFormat reports whether s may appear in a format feature of a rule.
func ValidFormat(s string) bool { return validFormat[s] }
