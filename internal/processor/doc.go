// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

/*
Package processor prepares downloaded photos for transfer to a display device.

Display frames have fixed panels and modest storage, so originals are
downscaled to fit the configured bounds and re-encoded before they ship.
Processing is a pure local step between download and push:

	download -> Process -> hash -> push -> Cleanup

# Pass-Through

Process only touches pixels when there is work to do. A photo that already
fits the bounds, carries no orientation tag, and is already in the output
format is passed through: the returned artifact points at the input file and
no copy is made. Cleanup recognizes this case and never deletes files the
processor did not create.

# Orientation

Cameras record rotation as an EXIF tag rather than rotating pixels. Display
devices typically ignore the tag, so the processor bakes the orientation into
the pixel data before encoding.

# Formats

JPEG, PNG, GIF, and WebP inputs decode; output is JPEG or PNG. HEIC is
recognized but not converted and returns ErrUnsupportedFormat, which the sync
engine records as a per-photo error.
*/
package processor
