// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package inmem provides a process-local queue.Q. It enforces content
deduplication, per-group FIFO with head-of-line blocking, visibility timeouts and
dead-lettering the same way a hosted FIFO queue does, so it backs both
single-process deployments and tests.
*/
package inmem
