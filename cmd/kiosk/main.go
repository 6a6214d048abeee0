// Command kiosk は受付端末のカメラまたは写真ファイルから出席登録を行います。
package main

func main() {
	Execute()
}
