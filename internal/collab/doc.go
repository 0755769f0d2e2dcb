// Package collab provides collaborators: the codec boundary every module
// delegates its actual format transformation to.
//
// A collaborator turns a source path into a destination path and may fail.
// Command runs an external tool configured by the module's JSON blob, Func adapts
// an in-process function, and Resolver picks one per module.
package collab
