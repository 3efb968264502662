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
	"github.com/gin-gonic/gin"

	"github.com/presslane/newswire"
	"github.com/presslane/newswire/api/middleware"
	"github.com/presslane/newswire/config"
	"github.com/presslane/newswire/formatter"
)

type Api struct {
	newswire *newswire.Newswire
	router   *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/subscribers", a.CreateSubscriber)
	router.GET("/subscribers/:id", a.GetSubscriber)
	router.GET("/subscribers", a.GetAllSubscribers)
	router.PUT("/subscribers/:id", a.UpdateSubscriber)
	router.POST("/subscribers/:id/deactivate", a.DeactivateSubscriber)

	router.POST("/products", a.CreateProduct)
	router.GET("/products/:id", a.GetProduct)
	router.GET("/products", a.GetAllProducts)
	router.PUT("/products/:id", a.UpdateProduct)
	router.DELETE("/products/:id", a.DeleteProduct)

	router.POST("/content-filters", a.CreateContentFilter)
	router.GET("/content-filters/:id", a.GetContentFilter)
	router.GET("/content-filters", a.GetAllContentFilters)
	router.PUT("/content-filters/:id", a.UpdateContentFilter)
	router.DELETE("/content-filters/:id", a.DeleteContentFilter)
	router.POST("/content-filters/test", a.TestContentFilter)

	router.POST("/filter-conditions", a.CreateFilterCondition)
	router.GET("/filter-conditions", a.GetAllFilterConditions)

	router.POST("/publish", a.Publish)
	router.POST("/resend", a.Resend)

	router.GET("/queue/:queue_id", a.GetQueueItem)
	router.POST("/queue/:queue_id/resend", a.ResendQueueItem)
	router.GET("/queue/items/:item_id", a.GetQueueItemsForItem)
	router.GET("/queue/subscribers/:id", a.GetQueueItemsForSubscriber)
	router.POST("/queue/items/:item_id/cancel", a.CancelTransmissions)
	router.POST("/queue/items/:item_id/legal", a.MoveToLegal)
	router.DELETE("/queue/items/:item_id", a.DeleteQueueItems)

	router.GET("/formats", a.ListFormats)

	return a.router
}

func NewAPI(engine *newswire.Newswire) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{newswire: engine, router: r}
}

func (a Api) ListFormats(c *gin.Context) {
	c.JSON(200, gin.H{"formats": formatter.Names()})
}
