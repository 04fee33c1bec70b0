// internal/artifacts/backup.go
package artifacts

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/zlib"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/pbkdf2"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"strconv"
	"strings"

	"droidsweep/internal/platform/errors"
)

// Android backup (.ab) format errors.
var (
	ErrInvalidBackup         = errors.New("invalid android backup")
	ErrInvalidBackupPassword = errors.New("invalid backup password")
)

const (
	backupMagic   = "ANDROID BACKUP"
	backupKeySize = 32

	telephonyBackupDir = "apps/com.android.providers.telephony/d_f/"
)

// DecodeBackup returns the tar stream inside an .ab file, decrypting and
// inflating it as the header requires. password is only used for AES-256
// backups.
func DecodeBackup(data []byte, password string) ([]byte, error) {
	r := bufio.NewReader(bytes.NewReader(data))

	header := make([]string, 4)
	for i := range header {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, errors.Wrap(ErrInvalidBackup, "truncated header")
		}
		header[i] = strings.TrimSpace(line)
	}
	if header[0] != backupMagic {
		return nil, errors.Wrap(ErrInvalidBackup, "invalid file header")
	}
	version, err := strconv.Atoi(header[1])
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidBackup, "invalid version %q", header[1])
	}
	compressed := header[2] == "1"

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read backup payload")
	}

	switch header[3] {
	case "none":
	case "AES-256":
		if payload, err = decryptBackup(payload, password, version); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Wrapf(ErrInvalidBackup, "encryption %q not supported", header[3])
	}

	if !compressed {
		return payload, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidBackup, "impossible to decompress the backup")
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidBackup, "impossible to decompress the backup")
	}
	return out, nil
}

// decryptBackup handles the AES-256 layout: five hex header lines (user salt,
// checksum salt, rounds, user IV, encrypted master key blob) then the
// AES-CBC encrypted payload.
func decryptBackup(enc []byte, password string, version int) ([]byte, error) {
	if password == "" {
		return nil, ErrInvalidBackupPassword
	}

	r := bufio.NewReader(bytes.NewReader(enc))
	fields := make([]string, 5)
	for i := range fields {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, errors.Wrap(ErrInvalidBackup, "truncated encryption header")
		}
		fields[i] = strings.TrimSpace(line)
	}
	userSalt, err1 := hex.DecodeString(fields[0])
	checksumSalt, err2 := hex.DecodeString(fields[1])
	rounds, err3 := strconv.Atoi(fields[2])
	userIV, err4 := hex.DecodeString(fields[3])
	blob, err5 := hex.DecodeString(fields[4])
	if err := errors.Join(err1, err2, err3, err4, err5); err != nil {
		return nil, errors.Wrap(ErrInvalidBackup, "malformed encryption header")
	}

	userKey, err := pbkdf2.Key(sha1.New, password, userSalt, rounds, backupKeySize)
	if err != nil {
		return nil, errors.Wrap(err, "derive user key")
	}
	plainBlob, err := aesCBCDecrypt(userKey, userIV, blob)
	if err != nil {
		// A wrong password almost always breaks the padding.
		return nil, ErrInvalidBackupPassword
	}

	masterIV, rest, ok := readLengthPrefixed(plainBlob)
	masterKey, rest, ok2 := readLengthPrefixed(rest)
	checksum, _, ok3 := readLengthPrefixed(rest)
	if !ok || !ok2 || !ok3 {
		return nil, ErrInvalidBackupPassword
	}

	hmacKey := masterKey
	if version > 1 {
		hmacKey = javaUTF8(masterKey)
	}
	calc, err := pbkdf2.Key(sha1.New, string(hmacKey), checksumSalt, rounds, backupKeySize)
	if err != nil {
		return nil, errors.Wrap(err, "derive checksum")
	}
	if !hmac.Equal(calc, checksum) {
		return nil, ErrInvalidBackupPassword
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read encrypted payload")
	}
	out, err := aesCBCDecrypt(masterKey, masterIV, payload)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidBackup, "failed to decrypt payload")
	}
	return out, nil
}

func aesCBCDecrypt(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != block.BlockSize() || len(data) == 0 || len(data)%block.BlockSize() != 0 {
		return nil, errors.New("invalid ciphertext size")
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)

	pad := int(out[len(out)-1])
	if pad == 0 || pad > block.BlockSize() || pad > len(out) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range out[len(out)-pad:] {
		if int(b) != pad {
			return nil, errors.New("invalid padding")
		}
	}
	return out[:len(out)-pad], nil
}

func readLengthPrefixed(b []byte) (field, rest []byte, ok bool) {
	if len(b) < 1 {
		return nil, nil, false
	}
	n := int(b[0])
	if len(b) < 1+n {
		return nil, nil, false
	}
	return b[1 : 1+n], b[1+n:], true
}

// javaUTF8 reproduces how Android encodes the master key bytes as a Java
// char array before deriving the checksum: bytes >= 0x80 are treated as
// sign-extended chars (0xFF80-0xFFFF) and encoded as three byte UTF-8.
func javaUTF8(in []byte) []byte {
	out := make([]byte, 0, len(in)*2)
	for _, b := range in {
		if b < 0x80 {
			out = append(out, b)
			continue
		}
		c := 0xFF00 | uint16(b)
		out = append(out,
			byte(0xE0|(c>>12)),
			byte(0x80|((c>>6)&0x3F)),
			byte(0x80|(c&0x3F)))
	}
	return out
}

// telephonyBackups returns the deflated SMS/MMS JSON chunks stored in a
// backup tar stream.
func telephonyBackups(tarData []byte) ([][]byte, error) {
	tr := tar.NewReader(bytes.NewReader(tarData))
	var out [][]byte
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, errors.Wrap(ErrInvalidBackup, "corrupt tar stream")
		}
		name := hdr.Name
		if !strings.HasPrefix(name, telephonyBackupDir) ||
			!(strings.HasSuffix(name, "_sms_backup") || strings.HasSuffix(name, "_mms_backup")) {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return out, errors.Wrap(ErrInvalidBackup, "truncated tar entry")
		}
		out = append(out, data)
	}
}
