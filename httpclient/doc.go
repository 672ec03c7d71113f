// Package httpclient is the HTTP transport used by REST-based storage
// backends. It adds base URLs, default auth, JSON/multipart/form bodies,
// typed JSON helpers, status classification, a token-bucket rate limiter
// and retry of idempotent requests.
//
//	a, _ := httpclient.New(httpclient.Config{
//	    BaseURL: "https://api.cloudinary.com/v1_1/demo",
//	    Auth:    httpclient.BasicAuth(key, secret),
//	})
//	resp, err := httpclient.Get[folderList](a, ctx, "/folders")
package httpclient
