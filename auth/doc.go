// Package auth issues and verifies the HMAC-signed JWTs that guard the
// write surface of the media server.
//
//	svc, err := auth.NewService(cfg.Server.Auth)
//	token, err := svc.Issue("uploader", 24*time.Hour)
//	claims, err := svc.Parse(token)
package auth
