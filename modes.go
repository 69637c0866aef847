/*
 * modes.go, part of westore.
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

import (
	"github.com/rmera/westore/internal/werr"
)

//Mode is the mode an archive is opened in.
type Mode string

const (
	ReadOnly        Mode = "r"  //the file must exist, no writes
	ReadWrite       Mode = "r+" //the file must exist
	Truncate        Mode = "w"  //create, overwriting an existing file
	CreateExclusive Mode = "x"  //create, fail if the file exists
	Append          Mode = "a"  //read-write if the file exists, create otherwise
)

//ParseMode accepts r, r+, w, x, w- and a.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "r", "r+", "w", "x", "a":
		return Mode(s), nil
	case "w-":
		return CreateExclusive, nil
	}
	return "", werr.New(werr.ModeViolation, "", "westore.ParseMode", "unknown mode %q, use one of r, r+, w, x, w- or a", s)
}

//Writable is false only for ReadOnly.
func (M Mode) Writable() bool { return M != ReadOnly }

//Creates is true for the modes that always create a new archive.
func (M Mode) Creates() bool { return M == Truncate || M == CreateExclusive }

func (M Mode) valid() bool {
	_, err := ParseMode(string(M))
	return err == nil
}
