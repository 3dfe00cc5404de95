// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

/*
Package adb talks to display devices through the adb binary.

Every operation shells out to adb with a bounded timeout and addresses the
device explicitly via -s, so multiple frames can be driven from one host
without cross-talk. TCP devices are (re)connected as part of the readiness
probe; USB devices are addressed by serial.

Error Taxonomy:

The package distinguishes two very different kinds of "not there":

  - Transport failure: the device could not be reached or the command could
    not run (offline, unauthorized, timeout). These return errors wrapping
    ErrDeviceUnavailable and are retryable.
  - Logical absence: the device answered and the file or directory simply
    does not exist. These are ordinary outcomes, reported as zero values
    (empty list, empty hash), never as errors.

Callers must not treat an empty RemoteHash as a failure, and must not treat
ErrDeviceUnavailable as "file missing". The reconciliation engine depends on
this split: confusing the two turns a flaky cable into a mass re-transfer or,
worse, a mass delete.

Testing:

The Runner seam replaces subprocess execution in tests. A scripted runner
returns canned outputs per argv, so the full command grammar and output
parsing are exercised without adb or hardware.
*/
package adb
