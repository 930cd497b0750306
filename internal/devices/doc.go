// Package devices discovers V4L2 cameras through sysfs and reports camera
// hotplug through a udev netlink monitor.
package devices
