package ctx

import (
	"github.com/valyala/fasthttp"

	dbpkg "audiogate/internal/db"
)

const (
	UserKey      = "user"
	UploadKeyKey = "uploadKey"
)

func SetUser(ctx *fasthttp.RequestCtx, user *dbpkg.User) {
	ctx.SetUserValue(UserKey, user)
}

func UserFromCtx(ctx *fasthttp.RequestCtx) (*dbpkg.User, bool) {
	v := ctx.UserValue(UserKey)
	if v == nil {
		return nil, false
	}
	u, ok := v.(*dbpkg.User)
	return u, ok
}

func SetUploadKey(ctx *fasthttp.RequestCtx, key *dbpkg.UploadKey) {
	ctx.SetUserValue(UploadKeyKey, key)
}

func UploadKeyFromCtx(ctx *fasthttp.RequestCtx) (*dbpkg.UploadKey, bool) {
	v := ctx.UserValue(UploadKeyKey)
	if v == nil {
		return nil, false
	}
	k, ok := v.(*dbpkg.UploadKey)
	return k, ok
}
