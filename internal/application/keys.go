package application

// IsCaptureKey сообщает, является ли нажатие клавишей съемки:
// аппаратная громкость+ или "+" с обычной клавиатуры.
func IsCaptureKey(code, key string) bool {
	return code == "AudioVolumeUp" || key == "+" || key == "Add"
}
