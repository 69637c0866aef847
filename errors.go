/*
 * errors.go, part of westore.
 *
 * Copyright 2026 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package westore

import "github.com/rmera/westore/internal/werr"

//The error taxonomy. Every error the package returns wraps one of these,
//test with errors.Is.
var (
	ErrSchemaConflict     = werr.SchemaConflict
	ErrShapeMismatch      = werr.ShapeMismatch
	ErrFieldNotFound      = werr.FieldNotFound
	ErrInvalidContig      = werr.InvalidContig
	ErrModeViolation      = werr.ModeViolation
	ErrFrameCountMismatch = werr.FrameCountMismatch
	ErrTooManyDimensions  = werr.TooManyDimensions
	ErrClosed             = werr.Closed
	ErrRunNotFound        = werr.RunNotFound
	ErrLocked             = werr.Locked
)

//Error is the decorated error type returned by the package.
type Error = werr.Error
