package config

import (
	"fmt"
	"strings"
)

// envCUE returns CUE source code that defines the _env hidden field.
//
// Example usage in config.cue:
//
//	config: {
//		if _env.os == "win32" {
//			documentsRoot: "D:\\Documents"
//		}
//	}
func envCUE(env *Env) string {
	return fmt.Sprintf(`_env: {
	os: %q
	locale: %q
	ci: %t
}`, env.OS, env.Locale, env.CI)
}

// detectPackageName extracts the package name from CUE source code.
// Returns empty string if no package declaration is found.
func detectPackageName(source string) string {
	for line := range strings.SplitSeq(source, "\n") {
		line = strings.TrimSpace(line)
		if pkg, found := strings.CutPrefix(line, "package "); found {
			return pkg
		}
		if line != "" && !strings.HasPrefix(line, "//") {
			break
		}
	}
	return ""
}

// injectEnv inserts the _env definition after the package declaration if present.
func injectEnv(source string, env *Env) string {
	pkgName := detectPackageName(source)
	if pkgName == "" {
		return envCUE(env) + "\n" + source
	}

	pkgDecl := "package " + pkgName
	idx := strings.Index(source, pkgDecl)
	if idx < 0 {
		return envCUE(env) + "\n" + source
	}
	afterPkg := idx + len(pkgDecl)
	return source[:afterPkg] + "\n" + envCUE(env) + source[afterPkg:]
}
