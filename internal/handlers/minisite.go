// minisite.go
//
// A versioned content and publish-state engine for minisites
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of minisitedb.
// minisitedb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// minisitedb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with minisitedb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/minisitedb/internal/middleware"
	"github.com/localnerve/minisitedb/internal/models"
	"github.com/localnerve/minisitedb/internal/services"
	"github.com/localnerve/minisitedb/internal/types"
	"github.com/localnerve/minisitedb/internal/utils"
	"github.com/rs/zerolog/log"
)

// NewContentParam is the :id value that asks new_draft to generate an id
const NewContentParam = "new"

// MinisiteHandler handles minisite operations and reads
type MinisiteHandler struct {
	Coordinator *services.Coordinator
}

// SlugsInput is the body of a slug change
type SlugsInput struct {
	BusinessSlug string           `json:"businessSlug"`
	LocationSlug string           `json:"locationSlug"`
	SiteVersion  types.FlexUint64 `json:"siteVersion"`
}

// RunOperation godoc
// @Summary Run a minisite operation
// @Description Merges the submitted form fields and runs new_draft, edit_draft, edit_published or publish_draft in one transaction
// @Tags minisites
// @Accept x-www-form-urlencoded,json
// @Produce json
// @Param id path string true "Minisite id, or 'new' for new_draft"
// @Param kind path string true "Operation kind" Enums(new_draft, edit_draft, edit_published, publish_draft)
// @Security CookieAuth
// @Success 200 {object} services.OperationResult
// @Success 201 {object} services.OperationResult
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Router /minisites/{id}/operations/{kind} [post]
func (h *MinisiteHandler) RunOperation(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == NewContentParam {
		id = ""
	}
	kind := services.OperationKind(c.Params("kind"))

	fields, err := parseFields(c)
	if err != nil {
		return utils.EngineErrorResponse(c, err)
	}

	result, err := h.Coordinator.RunOperation(c.UserContext(), services.OperationRequest{
		Kind:      kind,
		ContentID: id,
		Fields:    fields,
		Actor:     middleware.Actor(c),
	})
	if err != nil {
		return utils.EngineErrorResponse(c, err)
	}

	status := fiber.StatusOK
	if kind == services.OpNewDraft {
		status = fiber.StatusCreated
	}
	return utils.SuccessResponse(c, result, status)
}

// Rollback godoc
// @Summary Roll back to a version
// @Description Creates a new draft copying an earlier version. The live version is unchanged until published.
// @Tags minisites
// @Produce json
// @Param id path string true "Minisite id"
// @Param versionId path int true "Version id to copy"
// @Security CookieAuth
// @Success 201 {object} services.OperationResult
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /minisites/{id}/rollback/{versionId} [post]
func (h *MinisiteHandler) Rollback(c *fiber.Ctx) error {
	versionID, err := strconv.ParseUint(c.Params("versionId"), 10, 64)
	if err != nil || versionID == 0 {
		return utils.ErrorResponse(c, "versionId must be a positive integer", fiber.StatusBadRequest, types.KindInvalidOperation.String())
	}

	result, err := h.Coordinator.Rollback(c.UserContext(), c.Params("id"), versionID, middleware.Actor(c))
	if err != nil {
		return utils.EngineErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, result, fiber.StatusCreated)
}

// UpdateSlugs godoc
// @Summary Change the slug pair
// @Description Rewrites the business and location slugs when siteVersion matches the stored record
// @Tags minisites
// @Accept json
// @Produce json
// @Param id path string true "Minisite id"
// @Param body body SlugsInput true "New slugs and the site version they were read at"
// @Security CookieAuth
// @Success 200 {object} models.Minisite
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /minisites/{id}/slugs [put]
func (h *MinisiteHandler) UpdateSlugs(c *fiber.Ctx) error {
	var input SlugsInput
	if err := json.Unmarshal(c.Body(), &input); err != nil {
		return utils.ErrorResponse(c, "Invalid JSON body: "+err.Error(), fiber.StatusBadRequest, types.KindInvalidOperation.String())
	}
	input.BusinessSlug = strings.TrimSpace(input.BusinessSlug)
	input.LocationSlug = strings.TrimSpace(input.LocationSlug)
	if input.BusinessSlug == "" || strings.Contains(input.BusinessSlug+input.LocationSlug, "/") {
		return utils.ErrorResponse(c, "businessSlug is required and slugs may not contain '/'", fiber.StatusBadRequest, types.KindInvalidOperation.String())
	}

	rec, err := h.Coordinator.Records().Reload(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.EngineErrorResponse(c, err)
	}
	actor := middleware.Actor(c)
	if rec.OwnerID != actor {
		return utils.ErrorResponse(c, "Not the owner of this minisite", fiber.StatusForbidden, "minisite.authorization.owner")
	}

	rec.BusinessSlug = input.BusinessSlug
	rec.LocationSlug = input.LocationSlug
	rec.UpdatedBy = actor
	saved, err := h.Coordinator.SaveRecord(c.UserContext(), rec, input.SiteVersion.Uint64())
	if err != nil {
		return utils.EngineErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, saved, fiber.StatusOK)
}

// readable loads the :id record for the request actor. A record that is
// not published reads as missing to everyone but its owner.
func (h *MinisiteHandler) readable(c *fiber.Ctx) (*models.Minisite, error) {
	rec, err := h.Coordinator.Records().FindByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if rec.PublishStatus != models.StatusPublished && rec.OwnerID != middleware.Actor(c) {
		return nil, types.NotFound("minisite %s not found", rec.ID)
	}
	return rec, nil
}

// GetMinisite godoc
// @Summary Get a minisite record
// @Description Published records are public. Unpublished records are only returned to their owner.
// @Tags minisites
// @Produce json
// @Param id path string true "Minisite id"
// @Success 200 {object} models.Minisite
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /minisites/{id} [get]
func (h *MinisiteHandler) GetMinisite(c *fiber.Ctx) error {
	rec, err := h.readable(c)
	if err != nil {
		return utils.EngineErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, rec, fiber.StatusOK)
}

// ListVersions godoc
// @Summary List the version history of a minisite
// @Description Drafts are part of the history, so only the owner may list it
// @Tags minisites
// @Produce json
// @Param id path string true "Minisite id"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Page offset"
// @Security CookieAuth
// @Success 200 {object} utils.PageResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /minisites/{id}/versions [get]
func (h *MinisiteHandler) ListVersions(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id := c.Params("id")

	rec, err := h.readable(c)
	if err != nil {
		return utils.EngineErrorResponse(c, err)
	}
	if rec.OwnerID != middleware.Actor(c) {
		return utils.ErrorResponse(c, "Only the owner may list versions", fiber.StatusForbidden, "minisite.authorization.owner")
	}

	limit, offset := parsePage(c)
	versions, err := h.Coordinator.Versions().ListByMinisite(ctx, id, limit, offset)
	if err != nil {
		return utils.EngineErrorResponse(c, err)
	}
	total, err := h.Coordinator.Versions().CountByMinisite(ctx, id)
	if err != nil {
		return utils.EngineErrorResponse(c, err)
	}

	if versions == nil {
		versions = []models.Version{}
	}
	return utils.SuccessResponse(c, utils.PageResponseStruct{
		Ok:     true,
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Items:  versions,
	}, fiber.StatusOK)
}

// ListOwnerMinisites godoc
// @Summary List the minisites of an owner
// @Description Only the owner may list their own minisites
// @Tags minisites
// @Produce json
// @Param ownerId path string true "Owner id"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Page offset"
// @Security CookieAuth
// @Success 200 {object} utils.PageResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /owners/{ownerId}/minisites [get]
func (h *MinisiteHandler) ListOwnerMinisites(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ownerID := c.Params("ownerId")
	if ownerID != middleware.Actor(c) {
		return utils.ErrorResponse(c, "Owners may only list their own minisites", fiber.StatusForbidden, "minisite.authorization.owner")
	}

	limit, offset := parsePage(c)
	records, err := h.Coordinator.Records().ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("Failed to list minisites")
		return utils.EngineErrorResponse(c, err)
	}
	total, err := h.Coordinator.Records().CountByOwner(ctx, ownerID)
	if err != nil {
		return utils.EngineErrorResponse(c, err)
	}

	if records == nil {
		records = []models.Minisite{}
	}
	return utils.SuccessResponse(c, utils.PageResponseStruct{
		Ok:     true,
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Items:  records,
	}, fiber.StatusOK)
}
