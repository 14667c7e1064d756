/*
The sync package implements dirsync's transfer engine. Two agents move files
through a shared directory:

1) The Sender polls a local source directory. Each file it hasn't published
   yet is checked by the Validator, and eligible files are copied into the
   shared directory.
2) The Receiver polls the shared directory and copies each file it hasn't
   ingested yet into its local destination directory.

Each agent tracks what it has already transferred in a ProcessedSet. The
sender forgets a path once the file disappears from the source directory, so
a file that is removed and re-added is published again. The receiver never
forgets, so a path in the shared directory is ingested at most once per run.

Detection is done by polling rather than filesystem events so that it works on
any shared storage backend. Agents never stop on errors: a failed listing or a
failed copy is logged and retried on the next poll.

Only regular files directly inside the watched directory are considered.
Subdirectories are ignored, and so are the temporary files that agents write
during atomic publication.
*/
package sync
