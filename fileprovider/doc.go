// Package fileprovider exposes the remote asset service as a read-only
// tree of directory listings and file entries.
//
// Entries are values: a missing file is a *FileEntry whose Exists reports
// false, and an empty or missing folder is the NotFoundDirectory listing.
// Errors are reserved for remote failures and for reading content that is
// not there.
//
//	p := fileprovider.NewProvider(client, "/media", log)
//	listing, err := p.GetDirectoryContents(ctx, "1234")
//	for e := range listing.All() {
//	    fmt.Println(e.Name(), e.IsDir(), e.Length())
//	}
package fileprovider
