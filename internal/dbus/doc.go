// Package dbus observes org.freedesktop.Notifications traffic on the session
// bus without owning the notification service, and resolves the sending
// connection of each Notify call to a process id through a single-owner
// cache that follows NameOwnerChanged signals.
package dbus
