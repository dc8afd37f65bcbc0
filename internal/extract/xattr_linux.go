//go:build linux

package extract

import (
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const paxXattrPrefix = "SCHILY.xattr."

// restoreXattrs applies extended attributes carried in PAX records.
// Failures are logged; many filesystems refuse user or security xattrs.
func restoreXattrs(path string, records map[string]string) {
	for key, value := range records {
		if !strings.HasPrefix(key, paxXattrPrefix) {
			continue
		}
		attr := strings.TrimPrefix(key, paxXattrPrefix)
		if err := unix.Lsetxattr(path, attr, []byte(value), 0); err != nil {
			logrus.Debugf("Cannot restore xattr %s on %s: %v", attr, path, err)
		}
	}
}
