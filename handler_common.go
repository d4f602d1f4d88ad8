package main

import (
	"net/http"
	"strconv"

	"pulse/internal/response"
)

func jsonResp(w http.ResponseWriter, data interface{}) {
	response.JSON(w, data)
}

func jsonMeta(w http.ResponseWriter, data interface{}, total, page, limit int) {
	response.JSONMeta(w, data, total, page, limit)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	response.Err(w, msg, code)
}

func decodeBody(r *http.Request, v interface{}) error {
	return response.DecodeBody(r, v)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// parsePagination reads ?page= and ?limit= with sane bounds.
func parsePagination(r *http.Request) (page, limit, offset int) {
	page = 1
	limit = 20
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	offset = (page - 1) * limit
	return
}
