// Package discovery locates a running cfgd server and advertises one.
//
// A server writes its descriptor to a state file and may announce itself
// over mDNS as service type _cfgd._tcp. The TXT record carries the name of
// the server object ("obj") and the process id ("pid"), so a client can
// build the descriptor tcp://<address>:<port>#<obj>.
//
// Clients use a Locator to find the descriptor. Chain tries several
// locators in order, typically the state file first and mDNS second.
package discovery
