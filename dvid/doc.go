/*
	Package dvid provides types, constants, and functions that have no other dependencies
	and can be used by all packages of the DVID client.  This includes version UUIDs, 3d
	points and dense voxel arrays, serialization and compression of byte data, instance
	configuration, and logging.  Since these elements are used by the client, the test
	server, and the command-line tool, we separate them here.
*/
package dvid
