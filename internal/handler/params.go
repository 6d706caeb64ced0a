package handler

import (
	"strconv"
	"strings"

	"github.com/dev7ch/api/internal/service"
	"github.com/gin-gonic/gin"
)

// parseQueryOptions reads the shared read parameters: fields (csv),
// filter[column]=value, limit and depth
func parseQueryOptions(c *gin.Context) service.QueryOptions {
	q := service.QueryOptions{}

	if fields := c.Query("fields"); fields != "" && fields != "*" {
		for _, f := range strings.Split(fields, ",") {
			if f = strings.TrimSpace(f); f != "" {
				q.Fields = append(q.Fields, f)
			}
		}
	}
	if limit := c.Query("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			q.Limit = n
		}
	}
	if depth := c.Query("depth"); depth != "" {
		if n, err := strconv.Atoi(depth); err == nil && n > 0 {
			q.Depth = n
		}
	}

	for key, values := range c.Request.URL.Query() {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") || len(values) == 0 {
			continue
		}
		column := key[len("filter[") : len(key)-1]
		if column == "" {
			continue
		}
		if q.Filter == nil {
			q.Filter = map[string]interface{}{}
		}
		q.Filter[column] = values[0]
	}
	return q
}

// wantsMeta reports whether the client asked for the meta envelope
func wantsMeta(c *gin.Context) bool {
	meta := c.Query("meta")
	return meta == "*" || meta != ""
}
