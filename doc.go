/*
 * doc.go, part of westore.
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

/*
Package westore stores weighted ensemble simulations.

An archive holds the topology of the simulated system, the archive-wide
settings and a sequence of runs. Each run has the initial walkers, one
trajectory per walker slot, a decision enumeration and five record groups
(resampling, resampler, warping, boundary_conditions and progress). Runs
that continue other runs form contigs, which can be read as one timeline.

	**Capabilities**

    Dense and sparse per-frame fields, with shapes and dtypes declared at
	creation or fixed by the first write.

    Continual and sporadic record groups, readable as records or tables.

    Continuation graph, contigs, resampling panels and walker parent tables.

    Traces of fields along arbitrary (run, trajectory, cycle) paths and along
	whole contigs.

    Mounting runs from other archives without copying them, joining archives
	and cloning the settings of an archive into a new, empty one.

    Parallel, read-only mapping of functions over every trajectory, with the
	results optionally stored back as observables.

Archives are single SQLite files, see the container package. Only one
writer can hold an archive at a time.
*/
package westore
