/*
	Package client implements access to a remote DVID server through its HTTP API.

	A Connection holds the server address and transport settings.  A ServerService
	creates repos and reports server properties, while a NodeService is bound to one
	version node (a server address plus a version UUID) and creates and accesses the
	data instances at that node: keyvalue, uint8blk (grayscale) and labelblk.

	Example:

		conn, err := client.NewConnection("127.0.0.1:8000")
		...
		node, err := client.NewNodeService(conn, "87f0a170155f4b54933cc879346f04e6")
		...
		if _, err := node.CreateKeyValue(ctx, "stuart_keyvalue"); err != nil {
			...
		}
		err = node.Put(ctx, "stuart_keyvalue", "kkkk", []byte("vvvv"))
*/
package client
