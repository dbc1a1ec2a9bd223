package storage

import (
	"strings"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
)

// ValidateKey checks that key is an absolute path naming a value.
func ValidateKey(key string) error {
	if key == "/" {
		return cfgerr.New(cfgerr.BadKey, "the root directory is not a key")
	}
	return ValidateDir(key)
}

// ValidateDir checks that dir is an absolute path. The root "/" is valid.
func ValidateDir(dir string) error {
	if dir == "" || dir[0] != '/' {
		return cfgerr.Newf(cfgerr.BadKey, "%q must begin with a slash", dir)
	}
	if dir == "/" {
		return nil
	}
	if strings.HasSuffix(dir, "/") {
		return cfgerr.Newf(cfgerr.BadKey, "%q ends with a slash", dir)
	}
	if strings.Contains(dir, "//") {
		return cfgerr.Newf(cfgerr.BadKey, "%q contains two adjacent slashes", dir)
	}
	for i := 0; i < len(dir); i++ {
		if dir[i] < 0x20 || dir[i] == 0x7f {
			return cfgerr.Newf(cfgerr.BadKey, "%q contains a control character", dir)
		}
	}
	return nil
}

// Join appends name to dir.
func Join(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// Parent returns the directory holding key.
func Parent(key string) string {
	i := strings.LastIndexByte(key, '/')
	if i <= 0 {
		return "/"
	}
	return key[:i]
}

// Below reports whether key is dir itself or lies inside dir. The match
// is by path component: "/apps/foo" contains "/apps/foo/bar" but not
// "/apps/foobar".
func Below(dir, key string) bool {
	if dir == "/" {
		return strings.HasPrefix(key, "/")
	}
	if !strings.HasPrefix(key, dir) {
		return false
	}
	return len(key) == len(dir) || key[len(dir)] == '/'
}

// childPrefix returns the prefix shared by every key inside dir.
func childPrefix(dir string) string {
	if dir == "/" {
		return "/"
	}
	return dir + "/"
}
