package installer

import (
	"github.com/nexusos/nexuspkg/internal/installer/apk"
	"github.com/nexusos/nexuspkg/internal/installer/appimage"
	"github.com/nexusos/nexuspkg/internal/installer/deb"
	"github.com/nexusos/nexuspkg/internal/installer/delegate"
	"github.com/nexusos/nexuspkg/internal/installer/native"
	"github.com/nexusos/nexuspkg/internal/installer/pacman"
	"github.com/nexusos/nexuspkg/internal/installer/rpm"
	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/toolchain"
)

// DefaultRegistry registers a strategy for every format.
func DefaultRegistry(cfg *models.Config, tc *toolchain.Toolchain) *Registry {
	r := NewRegistry()

	archive := native.New(cfg, tc)
	for _, f := range []models.Format{models.FormatNative, models.FormatTar, models.FormatTarGZ, models.FormatTarXZ, models.FormatZip} {
		r.Register(f, archive)
	}

	r.Register(models.FormatDeb, deb.New(tc))
	r.Register(models.FormatRPM, rpm.New(cfg, tc))
	r.Register(models.FormatZst, pacman.New(cfg, tc))
	r.Register(models.FormatAPK, apk.New(tc))
	r.Register(models.FormatAppImage, appimage.New(cfg))
	r.Register(models.FormatBinary, appimage.NewBinary(cfg))

	for f := range delegate.Tools {
		s, _ := delegate.New(f, cfg, tc)
		r.Register(f, s)
	}
	return r
}
