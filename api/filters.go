/*
Copyright 2026 Presslane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/presslane/newswire/api/model"
)

func (a Api) CreateContentFilter(c *gin.Context) {
	var newFilter model2.CreateContentFilter
	if err := c.ShouldBindJSON(&newFilter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := newFilter.ValidateCreateContentFilter()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.newswire.Datasource().CreateContentFilter(c.Request.Context(), newFilter.ToContentFilter())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetContentFilter(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.newswire.Datasource().GetContentFilterByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if resp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "content filter not found"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetAllContentFilters(c *gin.Context) {
	resp, err := a.newswire.Datasource().GetAllContentFilters(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) UpdateContentFilter(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var updated model2.CreateContentFilter
	if err := c.ShouldBindJSON(&updated); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := updated.ValidateCreateContentFilter(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	filter := updated.ToContentFilter()
	filter.FilterID = id
	if err := a.newswire.Datasource().UpdateContentFilter(c.Request.Context(), &filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, filter)
}

func (a Api) DeleteContentFilter(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	if err := a.newswire.Datasource().DeleteContentFilter(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"filter_id": id, "deleted": true})
}

// TestContentFilter evaluates an unsaved filter against an item so editors
// can preview matches.
func (a Api) TestContentFilter(c *gin.Context) {
	var req model2.TestFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateTestFilterRequest(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	filter := req.Filter.ToContentFilter()
	matched, err := a.newswire.TestFilter(c.Request.Context(), &filter, req.Item)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"matched": matched})
}

func (a Api) CreateFilterCondition(c *gin.Context) {
	var newCondition model2.CreateFilterCondition
	if err := c.ShouldBindJSON(&newCondition); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := newCondition.ValidateCreateFilterCondition()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.newswire.Datasource().CreateFilterCondition(c.Request.Context(), newCondition.ToFilterCondition())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetAllFilterConditions(c *gin.Context) {
	resp, err := a.newswire.Datasource().GetAllFilterConditions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}
