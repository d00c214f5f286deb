// Package devmgmt is the device-management client: it announces the
// device's resources to the management service, answers GET, PUT, POST and
// OBSERVE requests, pushes notifications for observable resources and
// reports the delivery outcome of every upstream message.
//
// The wire protocol is JSON over MQTT, one topic tree per endpoint:
//
//	{root}/{endpoint}/register               device → server (retained)
//	{root}/{endpoint}/deregister             device → server
//	{root}/{endpoint}/status                 device → server (retained, LWT)
//	{root}/{endpoint}/notify/{o}/{i}/{r}     device → server
//	{root}/{endpoint}/response/{id}          device → server
//	{root}/{endpoint}/request/{o}/{i}/{r}    server → device
//	{root}/{endpoint}/ack                    server → device
//
// Response codes follow CoAP: 2.05 Content is 205, 2.04 Changed is 204,
// 4.00 is 400, 4.04 is 404, 4.05 is 405 and 5.00 is 500.
//
// # Threading
//
// Request dispatch, resource callbacks and status reports are handed to
// the Executor installed with SetExecutor. The application installs one
// that queues work onto its control loop, so every callback runs on a
// single goroutine. Without an executor, work runs on the calling
// goroutine.
package devmgmt
