/*
Package subscription implements the Subscription Manager: one Session
per active machine, with start/stop/reconnect and a connectivity health
check the Worker Loop polls.

The production OPC UA transport sits behind the Session interface and
is out of scope for this module. Simulator is the only concrete Session
shipped, emitting synthetic readings so the rest of the pipeline is
runnable and testable without hardware.
*/
package subscription
