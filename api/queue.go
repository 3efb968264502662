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
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/presslane/newswire"
	model2 "github.com/presslane/newswire/api/model"
)

func (a Api) Publish(c *gin.Context) {
	var req model2.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := req.ValidatePublishRequest()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.newswire.Publish(c.Request.Context(), req.Item, req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Resend queues an item again for an explicit list of subscribers, skipping
// their content filters.
func (a Api) Resend(c *gin.Context) {
	var req model2.ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := req.ValidateResendRequest(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.newswire.Resend(c.Request.Context(), req.Item, req.SubscriberIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetQueueItem(c *gin.Context) {
	id, passed := c.Params.Get("queue_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "queue_id is required. pass id in the route /:queue_id"})
		return
	}

	resp, err := a.newswire.Datasource().GetQueueItemByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if resp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "queue entry not found"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ResendQueueItem clones a finished queue entry back to pending so the next
// scheduler pass transmits it again.
func (a Api) ResendQueueItem(c *gin.Context) {
	id, passed := c.Params.Get("queue_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "queue_id is required. pass id in the route /:queue_id"})
		return
	}

	resp, err := a.newswire.Datasource().RequeueItem(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Best effort; the scheduler picks the clone up on its next pass anyway.
	if err := newswire.EnqueueTransmission(resp.QueueID); err != nil {
		logrus.WithError(err).Warn("failed to enqueue transmission for resend")
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetQueueItemsForItem(c *gin.Context) {
	itemID, passed := c.Params.Get("item_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_id is required. pass id in the route /:item_id"})
		return
	}

	resp, err := a.newswire.Datasource().GetQueueItemsForItem(c.Request.Context(), itemID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetQueueItemsForSubscriber(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	resp, err := a.newswire.Datasource().GetQueueItemsForSubscriber(c.Request.Context(), id, limit, offset)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) CancelTransmissions(c *gin.Context) {
	itemID, passed := c.Params.Get("item_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_id is required. pass id in the route /:item_id"})
		return
	}

	canceled, err := a.newswire.Datasource().CancelTransmissions(c.Request.Context(), itemID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"item_id": itemID, "canceled": canceled})
}

// MoveToLegal flags every queue entry of an item as held for legal review.
func (a Api) MoveToLegal(c *gin.Context) {
	itemID, passed := c.Params.Get("item_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_id is required. pass id in the route /:item_id"})
		return
	}

	moved, err := a.newswire.Datasource().MarkMovedToLegal(c.Request.Context(), itemID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"item_id": itemID, "moved": moved})
}

// DeleteQueueItems removes an item's queue history and its offloaded payloads.
func (a Api) DeleteQueueItems(c *gin.Context) {
	itemID, passed := c.Params.Get("item_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_id is required. pass id in the route /:item_id"})
		return
	}

	blobKeys, err := a.newswire.Datasource().DeleteQueueItemsByItem(c.Request.Context(), itemID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, key := range blobKeys {
		if key == "" {
			continue
		}
		if err := a.newswire.Blobs().Delete(c.Request.Context(), key); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"item_id": itemID, "deleted_payloads": len(blobKeys)})
}
