// common.go
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
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/minisitedb/internal/document"
	"github.com/localnerve/minisitedb/internal/types"
)

// Paging bounds for list endpoints
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// parseFields reads the submitted form fields. JSON bodies may carry a
// string, number, bool or array per key; form bodies may repeat keys.
func parseFields(c *fiber.Ctx) (document.Fields, error) {
	fields := make(document.Fields)
	contentType := strings.ToLower(string(c.Request().Header.ContentType()))

	switch {
	case strings.HasPrefix(contentType, fiber.MIMEApplicationJSON):
		body := c.Body()
		if len(body) == 0 {
			return fields, nil
		}
		var values map[string]types.FlexStrings
		if err := json.Unmarshal(body, &values); err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid JSON body: "+err.Error())
		}
		for key, value := range values {
			fields[key] = []string(value)
		}

	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid multipart body: "+err.Error())
		}
		for key, values := range form.Value {
			fields[key] = append(fields[key], values...)
		}

	default:
		// Visit all post arguments so repeated keys are kept
		args := c.Request().PostArgs()
		for key, value := range args.All() {
			k := string(key)
			fields[k] = append(fields[k], string(value))
		}
	}

	return fields, nil
}

// parsePage reads limit and offset, clamped to the paging bounds
func parsePage(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", DefaultPageSize)
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
