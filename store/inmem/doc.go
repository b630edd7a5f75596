// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package inmem implements the store DAO interface. This implementation is meant
to help get an instance of setsync up and running quickly without a need to setup
a dedicated DB. Records are lost on restart, so it is recommended for test
environments only.
*/
package inmem
