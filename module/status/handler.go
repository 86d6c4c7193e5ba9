package status

import (
	"io"
	"net/http"
	"strconv"

	midsec "FCProject/middleware/security"
	"FCProject/module/status/service"
	userservice "FCProject/module/user/service"
	mgoSrv "FCProject/service/mgo"
	"FCProject/tools/errs"
	"FCProject/tools/resp"

	"github.com/gin-gonic/gin"
)

// 8 MB, matches the client-side image cap
const maxMediaBytes = 8 << 20

// HandlerUpload stores a status image and returns its media id.
func HandlerUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		resp.Fail(c, errs.ErrArgs.WrapMsg("image file missing"))
		return
	}
	defer func() { _ = file.Close() }()

	fileID, err := service.UploadMedia(c.Request.Context(), mgoSrv.GetDB(), header.Filename,
		io.LimitReader(file, maxMediaBytes))
	if err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, gin.H{"fileId": fileID})
}

// HandlerMedia streams a stored image back.
func HandlerMedia(c *gin.Context) {
	b, err := service.DownloadMedia(c.Request.Context(), mgoSrv.GetDB(), c.Param("id"))
	if err != nil {
		resp.Fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", b)
}

type postReq struct {
	Image      string `json:"image" binding:"required"`
	Caption    string `json:"caption"`
	Visibility string `json:"visibility"`
}

func HandlerPost(c *gin.Context) {
	var req postReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	st, err := service.Post(c.Request.Context(), mgoSrv.GetDB(), service.PostInput{
		OwnerUID:   midsec.CallerUID(c),
		Image:      req.Image,
		Caption:    req.Caption,
		Visibility: req.Visibility,
	})
	if err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, st)
}

// HandlerList returns the statuses visible to the caller.
func HandlerList(c *gin.Context) {
	ctx := c.Request.Context()
	db := mgoSrv.GetDB()

	viewer, err := userservice.GetUser(ctx, db, midsec.CallerUID(c))
	if err != nil {
		resp.Fail(c, err)
		return
	}
	limit := int64(0)
	if v := c.Query("limit"); v != "" {
		limit = parseLimit(v)
	}
	list, err := service.ListVisible(ctx, db, viewer, limit)
	if err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, list)
}

func HandlerMarkViewed(c *gin.Context) {
	if err := service.MarkViewed(c.Request.Context(), mgoSrv.GetDB(), c.Param("id"), midsec.CallerUID(c)); err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, nil)
}

func HandlerDelete(c *gin.Context) {
	if err := service.DeleteStatus(c.Request.Context(), mgoSrv.GetDB(), c.Param("id"), midsec.CallerUID(c)); err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, nil)
}

func parseLimit(s string) int64 {
	x, err := strconv.ParseInt(s, 10, 64)
	if err != nil || x < 0 {
		return 0
	}
	return x
}
