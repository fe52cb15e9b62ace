package cli

import (
	"github.com/cloudgate/cloudgate/internal/config"
	"github.com/cloudgate/cloudgate/internal/provider"
	"github.com/cloudgate/cloudgate/internal/provider/gdrive"
	"github.com/cloudgate/cloudgate/internal/provider/localfs"
	"github.com/cloudgate/cloudgate/internal/provider/rclone"
	"github.com/cloudgate/cloudgate/internal/provider/s3p"
	"github.com/cloudgate/cloudgate/internal/provider/webdavp"
)

// rcloneBackedTypes lists the provider type tags spec.md §1 names that
// have no direct vendor SDK wired in this build (Dropbox, Box, OneDrive,
// pCloud, Mega, Yandex Disk, HubiC). Each is served by the same rclone
// subprocess provider, scoped to the rclone remote the account's stored
// credentials name, the way rclone itself treats every backend as just
// another configured remote.
var rcloneBackedTypes = []string{
	"dropbox", "box", "onedrive", "pcloud", "mega", "yandex", "hubic",
}

// buildRegistry wires every Provider Factory this build implements.
// settings is threaded into gdrive's Factory so its auth.Manager can
// persist a rotated refresh token back through it.
func buildRegistry(settings *config.Settings) *provider.Registry {
	reg := provider.NewRegistry()
	reg.Register("local", localfs.Factory())
	reg.Register("webdav", webdavp.Factory())
	reg.Register("s3", s3p.Factory())
	reg.Register("gdrive", gdrive.Factory(settings))
	for _, t := range rcloneBackedTypes {
		reg.Register(t, rclone.Factory(t))
	}
	return reg
}
