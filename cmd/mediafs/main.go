// Command mediafs serves and manages a remote media library mounted at a
// virtual path.
package main

import (
	"os"

	_ "github.com/kbukum/mediafs/storage/cloudinary"
	_ "github.com/kbukum/mediafs/storage/memory"
	_ "github.com/kbukum/mediafs/storage/s3"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
